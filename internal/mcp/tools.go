package mcp

import "github.com/mark3labs/mcp-go/mcp"

// askTwinTool defines the ask_twin MCP tool.
var askTwinTool = mcp.NewTool("ask_twin",
	mcp.WithDescription("Ask the twin a question. The answer is grounded in the twin's own material, cited, and checked against the persona's voice and policy rules."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The question to ask"),
	),
)

// searchKnowledgeTool defines the search_knowledge MCP tool.
var searchKnowledgeTool = mcp.NewTool("search_knowledge",
	mcp.WithDescription("Search the twin's grounding material directly. Returns raw passages with source IDs and similarity scores, without answer synthesis."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of passages to return (default 8)"),
	),
)
