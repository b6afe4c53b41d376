package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"fieldveil"
	"fieldveil/core"
	"fieldveil/recognizer"
)

// settings is everything the flags decide
type settings struct {
	mode           string
	file           string
	columnsPath    string
	patternsPath   string
	recognizerPath string
	commandsPath   string
	outPath        string
	keyFile        string
	seed           int64
	preserveLast   int
	inlineSweep    bool
	reviewer       string
	auditPath      string
	auditLevel     string
}

func main() {
	var s settings

	flag.StringVar(&s.mode, "mode", "detect", "detect or obfuscate")
	flag.StringVar(&s.file, "file", "", "report file to process (required)")
	flag.StringVar(&s.columnsPath, "columns", "", "fixed-width column layout YAML")
	flag.StringVar(&s.patternsPath, "patterns", "", "pattern library YAML merged over the built-ins")
	flag.StringVar(&s.recognizerPath, "recognizer", "", "recognizer MCP server executable; empty disables the recognizer")
	flag.StringVar(&s.commandsPath, "commands", "", "review command file (JSON array) applied before obfuscation")
	flag.StringVar(&s.outPath, "out", "", "output file; empty writes to stdout")
	flag.StringVar(&s.keyFile, "key-file", "", "pseudonymization key file; empty reads $"+core.PseudoKeyEnv)
	flag.Int64Var(&s.seed, "seed", 1, "synthesizer seed; same seed and key reproduce the output")
	flag.IntVar(&s.preserveLast, "preserve-last", 0, "digits kept at the tail of pseudonymized identifiers; 0 means 4, negative keeps none")
	flag.BoolVar(&s.inlineSweep, "inline-sweep", true, "re-check text between spans for SSN-shaped values")
	flag.StringVar(&s.reviewer, "reviewer", "", "reviewer identity recorded on audit events")
	flag.StringVar(&s.auditPath, "audit-log", "", "audit log path; empty disables auditing")
	flag.StringVar(&s.auditLevel, "audit-level", "standard", "audit detail: minimal, standard or verbose")
	flag.Parse()

	if err := run(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(s settings) error {
	if s.mode != "detect" && s.mode != "obfuscate" {
		return fmt.Errorf("unknown mode %q: use detect or obfuscate", s.mode)
	}
	if s.file == "" {
		return fmt.Errorf("no input: -file is required")
	}

	data, err := os.ReadFile(s.file)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	text := string(data)

	requestID := uuid.NewString()

	var audit *core.AuditLogger
	if s.auditPath != "" {
		audit, err = core.NewAuditLogger(core.AuditConfig{
			Path:  s.auditPath,
			Level: core.AuditLevel(s.auditLevel),
		})
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	opts := fieldveil.Options{
		Patterns:     core.NewPatternSet(),
		PreserveLast: s.preserveLast,
		InlineSweep:  s.inlineSweep,
		SynthSeed:    s.seed,
		Reviewer:     s.reviewer,
		Audit:        audit,
	}
	if s.keyFile != "" {
		opts.Key = core.KeyConfig{Source: core.KeySourceFile, Path: s.keyFile}
	}

	if s.patternsPath != "" {
		patterns, err := core.LoadPatternLibrary(s.patternsPath)
		if err != nil {
			return fmt.Errorf("failed to load pattern library: %w", err)
		}
		if audit != nil {
			audit.LogConfigLoaded(requestID, "patterns", s.patternsPath, patterns.Hash, patterns.Skipped)
		}
		opts.Patterns = patterns
	}

	if s.columnsPath != "" {
		layout, err := core.LoadColumnConfig(s.columnsPath)
		if err != nil {
			return fmt.Errorf("failed to load column layout: %w", err)
		}
		if audit != nil {
			audit.LogConfigLoaded(requestID, "columns", s.columnsPath, layout.Metadata.Hash, layout.SkippedFields)
		}
		opts.Columns = core.NewFixedWidth(*layout)
	}

	if s.recognizerPath != "" {
		client, err := recognizer.NewClient(s.recognizerPath, nil)
		if err != nil {
			return fmt.Errorf("failed to start recognizer: %w", err)
		}
		defer client.Close()
		opts.Recognizer = client
	}

	pipeline := fieldveil.New(opts)

	if s.mode == "detect" {
		return runDetect(pipeline, text, s.outPath)
	}
	return runObfuscate(pipeline, s.file, text, s.commandsPath, s.outPath)
}

// detectLine is one span in the detect listing. The index is how review
// command files address spans; it is stable across runs as long as the
// document and configuration do not change.
type detectLine struct {
	Index  int    `json:"index"`
	Label  string `json:"label"`
	Value  string `json:"value"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Line   int    `json:"line"`
	Left   int    `json:"left"`
	Right  int    `json:"right"`
	Source string `json:"source"`
}

func runDetect(pipeline *fieldveil.Pipeline, text, outPath string) error {
	set, reports := pipeline.Detect(text)

	for _, report := range reports {
		if report.Err != nil {
			fmt.Fprintf(os.Stderr, "producer %s failed: %v\n", report.Name, report.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "producer %s: %d candidates\n", report.Name, report.Count)
	}
	fmt.Fprintf(os.Stderr, "%d spans accepted, %d rejected, %d dropped\n",
		len(set.Spans), set.Rejected, set.Dropped)

	lines := make([]detectLine, len(set.Spans))
	for i, span := range set.Spans {
		lines[i] = detectLine{
			Index:  i,
			Label:  span.Label,
			Value:  span.Value,
			Start:  span.Start,
			End:    span.End,
			Line:   span.LineNumber,
			Left:   span.Left,
			Right:  span.Right,
			Source: string(span.Source),
		}
	}

	listing, err := json.MarshalIndent(lines, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode span listing: %w", err)
	}
	return writeOutput(outPath, append(listing, '\n'))
}

func runObfuscate(pipeline *fieldveil.Pipeline, document, text, commandsPath, outPath string) error {
	review, err := reviewFromFile(commandsPath)
	if err != nil {
		return err
	}

	result, err := pipeline.Process(document, text, review)
	if err != nil {
		return err
	}

	for _, report := range result.Reports {
		if report.Err != nil {
			fmt.Fprintf(os.Stderr, "producer %s failed: %v\n", report.Name, report.Err)
		}
	}
	if review != nil {
		fmt.Fprintf(os.Stderr, "review: %d confirmed, %d excluded, %d relabeled, %d edited, %d rejected\n",
			result.Outcome.Confirmed, result.Outcome.Excluded, result.Outcome.Relabeled,
			result.Outcome.Edited, result.Outcome.Rejected)
	}
	fmt.Fprintf(os.Stderr, "%d spans replaced, %d passed through, %d conflicts, %d invalid\n",
		result.Stats.Replaced, result.Stats.Passed, result.Stats.Conflicts, result.Stats.Invalid)

	return writeOutput(outPath, []byte(result.Output))
}

// fileCommand is the on-disk review command shape. Spans are addressed by
// their detect-listing index; translation to session ids happens once the
// session exists.
type fileCommand struct {
	Action string `json:"action"`
	Index  int    `json:"index"`
	Label  string `json:"label,omitempty"`
	Start  int    `json:"start,omitempty"`
	End    int    `json:"end,omitempty"`
}

// reviewFromFile loads a command file and returns a review function that
// resolves listing indexes against the live session. Commands with an
// out-of-range index keep a zero target, so the session rejects and counts
// them instead of the adapter hiding them.
func reviewFromFile(path string) (fieldveil.ReviewFunc, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read command file: %w", err)
	}

	var fileCmds []fileCommand
	if err := json.Unmarshal(data, &fileCmds); err != nil {
		return nil, fmt.Errorf("failed to parse command file: %w", err)
	}

	return func(items []core.ReviewItem) []core.ReviewCommand {
		cmds := make([]core.ReviewCommand, len(fileCmds))
		for i, fc := range fileCmds {
			cmd := core.ReviewCommand{
				Action: core.ReviewAction(fc.Action),
				Label:  fc.Label,
				Start:  fc.Start,
				End:    fc.End,
			}
			if fc.Index >= 0 && fc.Index < len(items) {
				cmd.Target = items[fc.Index].ID
			}
			cmds[i] = cmd
		}
		return cmds
	}, nil
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
