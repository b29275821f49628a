package main

import (
	"strings"

	"github.com/panbanda/winnow/internal/output"
	"github.com/panbanda/winnow/pkg/ast/treesitter"
	"github.com/urfave/cli/v2"
)

type languageInfo struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

func languagesCmd() *cli.Command {
	return &cli.Command{
		Name:   "languages",
		Usage:  "List supported languages and the aliases --language accepts",
		Action: runLanguagesCmd,
	}
}

func runLanguagesCmd(c *cli.Context) error {
	st, err := loadState(c)
	if err != nil {
		return err
	}

	reg := treesitter.NewRegistry()
	var rows [][]string
	langs := []languageInfo{}
	for _, lang := range reg.Languages() {
		aliases := reg.AliasesOf(lang)
		if aliases == nil {
			aliases = []string{}
		}
		rows = append(rows, []string{string(lang), strings.Join(aliases, ", ")})
		langs = append(langs, languageInfo{Name: string(lang), Aliases: aliases})
	}

	formatter, err := newFormatter(c, st.config)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(output.NewTable("Supported Languages", []string{"Language", "Aliases"}, rows, nil, langs))
}
