package config

import (
	"bytes"
	"fmt"
	"strings"
)

// Generator renders a Config back into Lua that ParseString accepts.
type Generator struct {
	indent string // Indentation string (default: two spaces)
}

// NewGenerator creates a new Lua config generator.
func NewGenerator() *Generator {
	return &Generator{indent: "  "}
}

// Generate renders cfg as an `arfilter` table. Fields equal to their
// defaults are omitted, except tools which are always written out.
func (g *Generator) Generate(cfg *Config) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("-- arfilter configuration\n\n")
	buf.WriteString("arfilter = {\n")

	g.writeTools(&buf, cfg.Tools)

	if cfg.Jobs > 1 {
		g.line(&buf, 1, fmt.Sprintf("jobs = %d,", cfg.Jobs))
	}
	if cfg.WorkDir != "" {
		g.line(&buf, 1, "workdir = "+quoteLuaString(cfg.WorkDir)+",")
	}
	if cfg.StateDir != "" {
		g.line(&buf, 1, "state_dir = "+quoteLuaString(cfg.StateDir)+",")
	}

	if cfg.Log.Level != "" || cfg.Log.Color != nil {
		g.line(&buf, 1, "log = {")
		if cfg.Log.Level != "" {
			g.line(&buf, 2, "level = "+quoteLuaString(cfg.Log.Level)+",")
		}
		if cfg.Log.Color != nil {
			g.line(&buf, 2, fmt.Sprintf("color = %t,", *cfg.Log.Color))
		}
		g.line(&buf, 1, "},")
	}

	if len(cfg.Targets) > 0 {
		g.line(&buf, 1, "targets = {")
		for _, t := range cfg.Targets {
			g.line(&buf, 2, "{")
			g.line(&buf, 3, "abi = "+quoteLuaString(string(t.ABI))+",")
			if t.Machine != "" {
				g.line(&buf, 3, "arch = "+quoteLuaString(t.Machine)+",")
			}
			g.line(&buf, 3, fmt.Sprintf("bits = %d,", t.Bits))
			g.writeList(&buf, 3, "match", t.Match)
			g.writeList(&buf, 3, "exclude", t.Exclude)
			g.writeList(&buf, 3, "samples", t.Samples)
			g.writeList(&buf, 3, "aliases", t.Aliases)
			g.line(&buf, 2, "},")
		}
		g.line(&buf, 1, "},")
	}

	if len(cfg.Archives) > 0 {
		g.line(&buf, 1, "archives = {")
		for _, a := range cfg.Archives {
			g.line(&buf, 2, fmt.Sprintf("{ path = %s, abi = %s },", quoteLuaString(a.Path), quoteLuaString(a.ABI)))
		}
		g.line(&buf, 1, "},")
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func (g *Generator) writeTools(buf *bytes.Buffer, tools Tools) {
	g.line(buf, 1, "tools = {")
	g.line(buf, 2, "ar = "+quoteLuaString(tools.Ar)+",")
	g.line(buf, 2, "file = "+quoteLuaString(tools.File)+",")
	g.line(buf, 2, "readelf = "+quoteLuaString(tools.Readelf)+",")
	g.line(buf, 1, "},")
}

func (g *Generator) writeList(buf *bytes.Buffer, depth int, key string, items []string) {
	if len(items) == 0 {
		return
	}
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = quoteLuaString(s)
	}
	g.line(buf, depth, key+" = { "+strings.Join(quoted, ", ")+" },")
}

func (g *Generator) line(buf *bytes.Buffer, depth int, s string) {
	buf.WriteString(strings.Repeat(g.indent, depth))
	buf.WriteString(s)
	buf.WriteByte('\n')
}

// quoteLuaString quotes a string for Lua, handling special characters.
func quoteLuaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\") // Escape backslashes first
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}
