// Package commands holds the framework console commands.
package commands

import (
	"fmt"
	"io"

	"github.com/helixframework/helix/internal/interfaces/console"
)

// Default returns every framework command
func Default() []console.CommandFactory {
	return []console.CommandFactory{
		AppInfo,
		ConfigShow,
		MigrateInit,
		MigrateStatus,
		Migrate,
		MigrateRollback,
		MakeMigration,
		MakeController,
		MakeService,
		MakeRequest,
		ViewsCompile,
		Serve,
	}
}

func writeln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func writef(w io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(w, format, a...)
}
