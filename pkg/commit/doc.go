/*
Package commit applies a finished migration log to storage.

	+-------------+      +-----------+      +-----------+
	| pipeline    | ---> | Committer | ---> |  storage  |
	|   .Log      |      | (replay)  |      | (afero)   |
	+-------------+      +-----------+      +-----------+

🎯 Purpose:
- Replays every change of a completed log in the order it was staged
- Writes through a temp file and a rename
- Creates parent directories as needed

⚡ Key Responsibilities:
- Refusing logs from failed or unfinished runs
- Reporting exactly how far a failed commit got
- Leaving storage untouched in dry-run mode

🚧 Known limits:
A failed commit is not undone. CommitError.Applied tells how many changes
already landed.
*/
package commit
