// Package flagx lets several components read their own command-line flags
// from os.Args without tripping over flags that belong to someone else.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// FilterArgs returns the subset of args made of allowed flags and their values.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      --config=conf.json
//
// A following argument is taken as the flag's value unless it starts with '-'.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// lookupString parses only the given short/long aliases of a single string
// flag out of os.Args. The last occurrence wins; def is returned when absent.
func lookupString(short, long, def string) string {
	value := def

	args := FilterArgs(os.Args[1:], []string{"-" + short, "-" + long, "--" + long})

	fs := flag.NewFlagSet(long, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&value, long, def, "")
	fs.StringVar(&value, short, def, "")
	_ = fs.Parse(args)

	return value
}

// ConfigFile returns the JSON config path given via -c / -config,
// or "" when none was supplied.
func ConfigFile() string {
	return lookupString("c", "config", "")
}

// EnvFile returns the dotenv path given via -envfile, defaulting to ".env".
func EnvFile() string {
	return lookupString("envfile", "env-file", ".env")
}
