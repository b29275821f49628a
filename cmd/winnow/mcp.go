package main

import (
	"github.com/panbanda/winnow/internal/mcpserver"
	"github.com/urfave/cli/v2"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes winnow's
comparisons as tools an assistant can invoke. Logs go to stderr or --log-file,
never to stdout.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "winnow": {
        "command": "winnow",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - compare_files        Shared regions and similarity of two files
  - compare_directory    Ranked similar pairs across a directory tree
  - list_languages       Supported languages and their aliases

Available prompts:
  - find-clones          Look for copied code across a project
  - review-pair          Walk through the overlap between two files`,
		Action: runMCPCmd,
	}
}

func runMCPCmd(c *cli.Context) error {
	st, err := loadState(c)
	if err != nil {
		return err
	}
	server := mcpserver.NewServer(version,
		mcpserver.WithConfig(st.config),
		mcpserver.WithLogger(st.logger),
		mcpserver.WithCache(st.cache))
	return server.Run(c.Context)
}
