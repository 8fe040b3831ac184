package vine

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Runner drives an engine from a line-oriented script, one turn per line.
// This allows for easy testing and integration with different frontends.
//
// Each line is one of:
//
//	<store>.<action> [arg ...]   call an action; args are JSON, or bare strings
//	get <store>[.<path>]         print the JSON value
//	stores                       list stores and their actions
//	exit | quit
//
// After every line the microtask queue is drained, and each store listener
// that fired prints one "~ <store> <changed props>" line.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
}

// NewRunner creates a new Runner. Input and Output must be set before Run.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes the script until EOF or exit. In headless mode the first
// failing line aborts the run; otherwise the error is printed and the run
// continues.
func (r *Runner) Run(engine *Engine) error {
	if r.Input == nil {
		return errors.New("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return errors.New("output writer must be set (use os.Stdout)")
	}
	writer := r.Output
	lineReader := bufio.NewReader(r.Input)

	for _, name := range engine.Stores() {
		store, _ := engine.Store(name)
		unsubscribe := store.Subscribe(func(names []string) {
			fmt.Fprintf(writer, "~ %s %s\n", name, strings.Join(trimStore(name, names), " "))
		})
		defer unsubscribe()
	}

	if !r.Headless {
		fmt.Fprintln(writer, "--- vine runner ---")
	}

	for {
		if !r.Headless {
			fmt.Fprint(writer, "> ")
		}
		text, err := lineReader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("input error: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		line, err := SanitizeLine(strings.TrimSpace(text))
		if err != nil {
			if r.Headless {
				return err
			}
			fmt.Fprintf(writer, "error: %v\n", err)
			line = ""
		}
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
		case line == "exit" || line == "quit":
			if !r.Headless {
				fmt.Fprintln(writer, "Bye!")
			}
			return nil
		default:
			if err := r.exec(engine, line); err != nil {
				if r.Headless {
					return fmt.Errorf("%q: %w", line, err)
				}
				fmt.Fprintf(writer, "error: %v\n", err)
			}
			engine.Tick()
		}

		if eof {
			return nil
		}
	}
}

func (r *Runner) exec(engine *Engine, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "stores":
		for _, name := range engine.Stores() {
			store, _ := engine.Store(name)
			fmt.Fprintf(r.Output, "%s [%s]\n", name, strings.Join(store.Actions(), ", "))
		}
		return nil
	case "get":
		if len(fields) != 2 {
			return errors.New("usage: get <store>[.<path>]")
		}
		store, path, err := resolve(engine, fields[1])
		if err != nil {
			return err
		}
		value := any(store.View())
		if path != "" {
			value = store.View().Path(path)
		}
		if v, ok := value.(*View); ok {
			value = v.Snapshot()
		}
		return r.printJSON(value)
	}

	store, action, err := resolve(engine, fields[0])
	if err != nil {
		return err
	}
	if action == "" {
		return fmt.Errorf("missing action in %q", fields[0])
	}
	args := make([]any, 0, len(fields)-1)
	for _, raw := range fields[1:] {
		args = append(args, parseArg(raw))
	}
	result, err := store.Call(action, args...)
	if err != nil {
		return err
	}
	if result != nil {
		if v, ok := result.(*View); ok {
			result = v.Snapshot()
		}
		fmt.Fprint(r.Output, "= ")
		return r.printJSON(result)
	}
	return nil
}

func (r *Runner) printJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.Output, string(data))
	return nil
}

// resolve splits "<store>.<rest>" into a store and the rest. The store part
// may be a definition name ("Counter") or a unique name ("Counter@S1").
func resolve(engine *Engine, ref string) (*Store, string, error) {
	storeRef, rest, _ := strings.Cut(ref, ".")
	store, ok := engine.Lookup(storeRef)
	if !ok {
		return nil, "", fmt.Errorf("unknown or ambiguous store %q", storeRef)
	}
	return store, rest, nil
}

func parseArg(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func trimStore(store string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.TrimPrefix(n, store+".")
	}
	sort.Strings(out)
	return out
}
