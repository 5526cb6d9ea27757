/*
Package config loads declarative migration files.

	            +-------------+
	            |   Config    |
	            |  (tasks)    |
	            +------+------+
	                   |
	   +---------+-----+-----+---------+
	   |         |           |         |
	+--+---+  +--+---+   +---+--+  +---+--+
	| YAML |  | JSON |   | TOML |  | HCL  |
	+------+  +------+   +------+  +------+

🎯 Purpose:
- Parses migration files by extension through a parser registry
- Validates every declared task before anything runs
- Builds a task.Definition from the parsed file

🔄 Flow:
1. LoadFile reads the file and picks a parser
2. The parser decodes into Config, rejecting unknown fields
3. Validate reports every invalid task at once
4. Build registers one task per TaskSpec

📝 Templates:
String values of to, path, content and set are text/template templates.
They see .Path .Dir .Name .Stem .Ext and .Cwd, plus these functions:

	field "a.b"          value at a dotted key of the decoded source file
	lower, upper
	replace old new s
	trimPrefix p s, trimSuffix x s

🔍 Example:

	cfg, err := config.LoadFile(ctx, "migration.yaml", config.WithCwd(dir))
	if err != nil {
		return err
	}
	def := config.Build(cfg)
*/
package config
