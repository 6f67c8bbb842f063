package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"turnstile/internal/engine"
	"turnstile/internal/gate"
	"turnstile/internal/record"
	"turnstile/internal/router"
	"turnstile/internal/skills"
	"turnstile/internal/store"
	"turnstile/internal/tools"
	"turnstile/internal/types"
)

var (
	runBackend    string
	runModel      string
	runStream     bool
	runSession    string
	runSkills     []string
	runTools      []string
	runArgs       []string
	runAllow      []string
	runRoute      bool
	runRecord     string
	runFromRecord string
	runContinue   bool
)

// runCmd executes a single reasoning turn
var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Execute one reasoning turn",
	Long: `Runs a single turn: tools first, then one backend call, then the
session append. Capabilities only run when their permissions are granted
with --allow; a denied capability stops the turn before anything else
happens.

Examples:
  turnstile run "explain goroutine leaks"
  turnstile run --stream --session work "summarize what we know so far"
  turnstile run --skill code-review "review internal/gate/gate.go"
  turnstile run --tool read-file --arg path=go.mod --allow filesystem-read "what does this module depend on?"
  turnstile run --route "fetch https://go.dev and list the headlines"
  turnstile run --record turn.json --continue "start the analysis"
  turnstile run --from-record turn.json "now finish it"`,
	Args: cobra.ArbitraryArgs,
	RunE: runTurn,
}

func init() {
	runCmd.Flags().StringVar(&runBackend, "backend", "", "Backend: ollama, deepseek or gemini (default: config)")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model name (default: config)")
	runCmd.Flags().BoolVar(&runStream, "stream", false, "Stream tokens as they arrive")
	runCmd.Flags().StringVar(&runSession, "session", "", "Named session to load and save back")
	runCmd.Flags().StringArrayVar(&runSkills, "skill", nil, "Skill bundle to inject (repeatable)")
	runCmd.Flags().StringArrayVar(&runTools, "tool", nil, "Capability to run before the turn (repeatable)")
	runCmd.Flags().StringArrayVar(&runArgs, "arg", nil, "Capability argument key=value (repeatable)")
	runCmd.Flags().StringArrayVar(&runAllow, "allow", nil, "Grant a permission: filesystem-read, filesystem-write, shell, network (repeatable)")
	runCmd.Flags().BoolVar(&runRoute, "route", false, "Rule-route the prompt over tools and skills")
	runCmd.Flags().StringVar(&runRecord, "record", "", "Write the execution record to this path")
	runCmd.Flags().StringVar(&runFromRecord, "from-record", "", "Seed the input from a prior record's output")
	runCmd.Flags().BoolVar(&runContinue, "continue", false, "Mark the record as requesting a follow-up turn")

	rootCmd.AddCommand(runCmd)
}

// runTurn executes a single turn through the full pipeline
func runTurn(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	// 1. Usage validation, before anything touches a backend
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && runFromRecord == "" {
		return fmt.Errorf("nothing to run: pass a prompt or --from-record")
	}
	if runRoute && (len(runTools) > 0 || len(runSkills) > 0) {
		return fmt.Errorf("--route picks the target itself; drop --tool/--skill or drop --route")
	}
	perms, err := parsePermissions(runAllow)
	if err != nil {
		return err
	}
	toolArgs, err := parseToolArgs(runArgs)
	if err != nil {
		return err
	}

	input := prompt
	if runFromRecord != "" {
		seed, err := readRecordOutput(runFromRecord)
		if err != nil {
			return err
		}
		if input == "" {
			input = seed
		} else {
			input = seed + "\n\n" + input
		}
	}
	logger.Info("Processing turn", zap.String("input", input))

	// 2. Resolve capabilities and skills, routing if asked
	g := gate.New(perms...)
	reg := tools.Builtin()
	loader := skills.NewLoader(cfg.Skills.Dir, logger)

	toolNames := runTools
	skillNames := runSkills
	var routed *record.RoutedTo
	if runRoute {
		skillReg, err := loader.Registry()
		if err != nil {
			return fmt.Errorf("load skills: %w", err)
		}
		targets := append(reg.Targets(), skillReg.Targets()...)
		decision := router.New(cfg.Router.Threshold).Route(input, targets)
		routed = &record.RoutedTo{
			Target:     decision.Target,
			Kind:       string(decision.Kind),
			Confidence: decision.Confidence,
			Reasoning:  decision.Reasoning,
		}
		logger.Info("Routed input",
			zap.String("target", decision.Target),
			zap.String("kind", string(decision.Kind)),
			zap.Float64("confidence", decision.Confidence))

		switch decision.Kind {
		case router.KindTool:
			toolNames = []string{decision.Target}
			if t := reg.Get(decision.Target); t != nil && len(toolArgs) == 0 {
				toolArgs = t.Args(input)
			}
			fmt.Printf("🧭 Routed to tool %s (%.2f)\n", decision.Target, decision.Confidence)
		case router.KindSkill:
			skillNames = []string{decision.Target}
			fmt.Printf("🧭 Routed to skill %s (%.2f)\n", decision.Target, decision.Confidence)
		default:
			fmt.Printf("🧭 No route matched (%s); running a plain turn\n", decision.Reasoning)
		}
	}

	// 3. Run capabilities behind the gate
	var results []types.ToolResult
	if len(toolNames) > 0 {
		results, err = reg.InvokeAll(ctx, toolNames, toolArgs, g)
		if err != nil {
			return err
		}
		for _, res := range results {
			if res.OK() {
				fmt.Printf("🔧 %s: ok\n", res.Tool)
			} else {
				fmt.Printf("🔧 %s: failed\n", res.Tool)
			}
		}
	}

	// 4. Load skill instructions
	var instructions []string
	for _, name := range skillNames {
		text, err := loader.Instructions(name)
		if err != nil {
			return fmt.Errorf("skill %s: %w", name, err)
		}
		instructions = append(instructions, text)
	}

	// 5. Load or create the session
	var sess *types.Session
	var st store.SessionStore
	if runSession != "" {
		var closeStore func()
		st, closeStore, err = openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		sess, err = st.Load(runSession)
		if errors.Is(err, store.ErrSessionNotFound) {
			sess = types.NewSession()
			fmt.Printf("📁 New session %q\n", runSession)
		} else if err != nil {
			return fmt.Errorf("load session %s: %w", runSession, err)
		}
	}

	// 6. Build the backend and the engine
	r, err := buildReasoner(ctx, runBackend, runModel)
	if err != nil {
		return err
	}
	eng, err := buildEngine(r)
	if err != nil {
		return err
	}

	// 7. Execute: exactly one backend call
	req := engine.TurnRequest{
		Input:        input,
		Session:      sess,
		Instructions: instructions,
		ToolResults:  results,
	}
	var resp *types.Response
	if runStream {
		tokens, final := eng.ExecuteStream(ctx, req)
		for tok := range tokens {
			fmt.Print(tok)
		}
		fmt.Println()
		out := <-final
		if out.Err != nil {
			return out.Err
		}
		resp = out.Response
	} else {
		resp, err = eng.Execute(ctx, req)
		if err != nil {
			return err
		}
		fmt.Println(resp.Content)
	}

	// 8. Save the session back
	if st != nil {
		if err := st.Save(sess, runSession); err != nil {
			return fmt.Errorf("save session %s: %w", runSession, err)
		}
		logger.Info("Session saved", zap.String("name", runSession), zap.Int("messages", sess.Len()))
	}

	// 9. Write the execution record
	if runRecord != "" {
		cont := record.Continuation{Requested: runContinue}
		if runContinue {
			cont.Reason = "caller requested a follow-up turn"
		}
		rec := record.FromTurn(record.Input{
			Prompt:  input,
			Backend: r.ID(),
			Mode:    "run",
			Routing: routed,
			Skills:  skillNames,
			Tools:   toolNames,
		}, resp, cont)

		data, err := rec.Encode()
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		if err := os.WriteFile(runRecord, data, 0o644); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		fmt.Printf("✅ Record written to %s\n", runRecord)
	}

	return nil
}

// readRecordOutput decodes a stored record and returns its output content.
func readRecordOutput(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read record: %w", err)
	}
	rec, err := record.Decode(data)
	if err != nil {
		return "", fmt.Errorf("decode record %s: %w", path, err)
	}
	return rec.Output.Content, nil
}

// parsePermissions validates --allow values against the closed set.
func parsePermissions(raw []string) ([]types.Permission, error) {
	perms := make([]types.Permission, 0, len(raw))
	for _, s := range raw {
		p, err := types.ParsePermission(s)
		if err != nil {
			return nil, fmt.Errorf("--allow: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, nil
}

// parseToolArgs parses repeated --arg key=value pairs.
func parseToolArgs(raw []string) (map[string]string, error) {
	args := make(map[string]string, len(raw))
	for _, s := range raw {
		key, value, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("bad --arg %q: want key=value", s)
		}
		args[strings.TrimSpace(key)] = value
	}
	return args, nil
}
