package claims

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// Load reads a spec source and indexes its claims. The file extension
// selects the format.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec source: %w", err)
	}

	var cs []Claim
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		cs, err = parseCUE(path, data)
	case ".yaml", ".yml", ".json":
		cs, err = parseYAML(path, data)
	default:
		return nil, &ParseError{
			File:    path,
			Field:   "source",
			Message: fmt.Sprintf("unsupported spec source extension %q (want .cue, .yaml, .yml or .json)", ext),
		}
	}
	if err != nil {
		setFile(err, path)
		return nil, err
	}

	base := filepath.Dir(path)
	for i := range cs {
		if cs[i].Program != "" && !filepath.IsAbs(cs[i].Program) {
			cs[i].Program = filepath.Join(base, cs[i].Program)
		}
	}
	return NewIndex(path, cs...)
}

// parseCUE extracts claims from the top-level `claim` struct.
// Field iteration follows declaration order.
func parseCUE(path string, data []byte) ([]Claim, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	claimVal := v.LookupPath(cue.ParsePath("claim"))
	if !claimVal.Exists() {
		return nil, nil
	}

	iter, err := claimVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var cs []Claim
	for iter.Next() {
		label := iter.Label()
		c, err := parseCUEClaim(label, iter.Value())
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	return cs, nil
}

func parseCUEClaim(label string, v cue.Value) (Claim, error) {
	c := Claim{Label: label}

	fields, err := v.Fields()
	if err != nil {
		return c, formatCUEError(err)
	}
	for fields.Next() {
		if name := fields.Label(); !claimKeys[name] {
			return c, posError(fields.Value().Pos(), label+"."+name, "unknown claim field")
		}
	}

	startVal := v.LookupPath(cue.ParsePath("start"))
	if !startVal.Exists() {
		return c, posError(v.Pos(), label+".start", "start symbol is required")
	}
	start, err := startVal.String()
	if err != nil {
		return c, formatCUEError(err)
	}
	c.Start = start

	if pv := v.LookupPath(cue.ParsePath("program")); pv.Exists() {
		if c.Program, err = pv.String(); err != nil {
			return c, formatCUEError(err)
		}
	}
	if dv := v.LookupPath(cue.ParsePath("description")); dv.Exists() {
		if c.Description, err = dv.String(); err != nil {
			return c, formatCUEError(err)
		}
	}
	if dv := v.LookupPath(cue.ParsePath("depth")); dv.Exists() {
		depth, err := dv.Int64()
		if err != nil {
			return c, formatCUEError(err)
		}
		c.Depth = int(depth)
	}
	return c, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ParseError{Field: "cue", Message: err.Error()}
	}

	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return posError(positions[0], "cue", first.Error())
	}
	return &ParseError{Field: "cue", Message: first.Error()}
}

func posError(pos token.Pos, field, msg string) *ParseError {
	pe := &ParseError{Field: field, Message: msg}
	if pos.IsValid() {
		pe.File = pos.Filename()
		pe.Line = pos.Line()
		pe.Column = pos.Column()
	}
	return pe
}

var claimKeys = map[string]bool{
	"start":       true,
	"program":     true,
	"depth":       true,
	"description": true,
}

type yamlClaim struct {
	Start       string `yaml:"start"`
	Program     string `yaml:"program"`
	Depth       int    `yaml:"depth"`
	Description string `yaml:"description"`
}

// parseYAML extracts claims from the top-level `claims` mapping. Decoding
// goes through yaml.Node so mapping order is kept.
func parseYAML(path string, data []byte) ([]Claim, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{File: path, Field: "yaml", Message: err.Error()}
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nodeError(path, root, "root", "expected a mapping")
	}

	var claimsNode *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "claims" {
			claimsNode = root.Content[i+1]
		}
	}
	if claimsNode == nil || claimsNode.Tag == "!!null" {
		return nil, nil
	}
	if claimsNode.Kind != yaml.MappingNode {
		return nil, nodeError(path, claimsNode, "claims", "expected a mapping of label to claim")
	}

	var cs []Claim
	for i := 0; i+1 < len(claimsNode.Content); i += 2 {
		keyNode, valNode := claimsNode.Content[i], claimsNode.Content[i+1]
		label := keyNode.Value

		if valNode.Kind != yaml.MappingNode {
			return nil, nodeError(path, valNode, label, "expected a mapping")
		}
		for j := 0; j+1 < len(valNode.Content); j += 2 {
			if k := valNode.Content[j]; !claimKeys[k.Value] {
				return nil, nodeError(path, k, label+"."+k.Value, "unknown claim field")
			}
		}

		var yc yamlClaim
		if err := valNode.Decode(&yc); err != nil {
			return nil, nodeError(path, valNode, label, err.Error())
		}
		if yc.Start == "" {
			return nil, nodeError(path, valNode, label+".start", "start symbol is required")
		}
		cs = append(cs, Claim{
			Label:       label,
			Start:       yc.Start,
			Program:     yc.Program,
			Depth:       yc.Depth,
			Description: yc.Description,
		})
	}
	return cs, nil
}

func nodeError(path string, n *yaml.Node, field, msg string) *ParseError {
	return &ParseError{File: path, Line: n.Line, Column: n.Column, Field: field, Message: msg}
}
