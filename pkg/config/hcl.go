// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files.
//
//	title = "migrate to flow-bm"
//
//	task "rename" {
//	  title   = "rename module.json"
//	  pattern = "module.json"
//	  to      = "application.json"
//	}
//
//	task "transform" {
//	  title   = "flow-bm scripts"
//	  pattern = "package.json"
//	  replace {
//	    old = "yoshi-bm"
//	    new = "yoshi-flow-bm"
//	  }
//	}
//
// The variable cwd holds the project directory.
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".hcl")
}

type hclReplacement struct {
	Old string `hcl:"old"`
	New string `hcl:"new"`
}

type hclTask struct {
	Kind      string            `hcl:"kind,label"`
	Title     string            `hcl:"title"`
	Pattern   string            `hcl:"pattern,optional"`
	To        string            `hcl:"to,optional"`
	Path      string            `hcl:"path,optional"`
	Content   string            `hcl:"content,optional"`
	Overwrite bool              `hcl:"overwrite,optional"`
	Replace   []hclReplacement  `hcl:"replace,block"`
	Set       map[string]string `hcl:"set,optional"`
	Unset     []string          `hcl:"unset,optional"`
}

type hclConfig struct {
	Title string    `hcl:"title"`
	Tasks []hclTask `hcl:"task,block"`
}

// 📝 Parse parses the migration from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte, vars Vars) (*Config, error) {
	filename := vars.Filename
	if filename == "" {
		filename = "migration.hcl"
	}

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"cwd": cty.StringVal(vars.Cwd),
		},
	}

	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	cfg := &Config{Title: hclCfg.Title}
	for _, t := range hclCfg.Tasks {
		spec := TaskSpec{
			Kind:      t.Kind,
			Title:     t.Title,
			Pattern:   t.Pattern,
			To:        t.To,
			Path:      t.Path,
			Content:   t.Content,
			Overwrite: t.Overwrite,
			Set:       t.Set,
			Unset:     t.Unset,
		}
		for _, r := range t.Replace {
			spec.Replace = append(spec.Replace, Replacement{Old: r.Old, New: r.New})
		}
		cfg.Tasks = append(cfg.Tasks, spec)
	}

	return cfg, nil
}
