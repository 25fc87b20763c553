package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mikey/llm-call-screener/internal/config"
	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/mikey/llm-call-screener/internal/di"
	"github.com/mikey/llm-call-screener/internal/screening"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// input is one recording or transcript to screen
type input struct {
	name  string
	audio []byte
	text  string
}

// outcome is what screening one input produced
type outcome struct {
	input    input
	greeting *screening.SpokenLine
	reply    *screening.SpokenLine
	session  core.CallSession
	saved    string
	duration time.Duration
	err      error
}

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	cfg *config.Config,
	orchestrator *screening.Orchestrator,
	logger *zap.Logger,
) error {
	defer logger.Sync()
	defer orchestrator.Close()

	inputs, err := loadInputs(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("=== Screening ===\n")
	fmt.Printf("Transcription: %s\n", cfg.GetTranscription().Provider)
	fmt.Printf("Classification: %s\n", cfg.GetClassification().Provider.Provider)
	fmt.Printf("Inputs: %d\n", len(inputs))

	results := make([]outcome, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(flags.Concurrency, 1))

	for i, in := range inputs {
		g.Go(func() error {
			results[i] = screen(gctx, orchestrator, flags, in)
			if results[i].err != nil {
				logger.Error("Failed to screen input",
					zap.String("input", in.name),
					zap.Error(results[i].err))
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		printOutcome(res, cfg)
		if res.err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(inputs))
	}
	return nil
}

// loadInputs collects the transcript flag or the files named on the command line.
// Files ending in .txt are screened as transcripts.
func loadInputs(flags *di.CLIFlags) ([]input, error) {
	if flags.Transcript != "" {
		return []input{{name: "transcript", text: flags.Transcript}}, nil
	}
	if len(flags.Files) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return []input{{name: "stdin", text: string(data)}}, nil
	}

	inputs := make([]input, 0, len(flags.Files))
	for _, path := range flags.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		in := input{name: path}
		if strings.EqualFold(filepath.Ext(path), ".txt") {
			in.text = string(data)
		} else {
			in.audio = data
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// screen runs one input through a full call and abandons it once the verdict is in
func screen(ctx context.Context, o *screening.Orchestrator, flags *di.CLIFlags, in input) (res outcome) {
	res.input = in
	start := time.Now()
	defer func() { res.duration = time.Since(start) }()

	session, err := o.StartCall(ctx, screening.IncomingCall{
		CallerNumber: flags.CallerNumber,
		CalleeName:   flags.CalleeName,
		Language:     flags.Language,
	})
	if err != nil {
		res.err = err
		return res
	}
	defer func() {
		if err := o.Abandon(context.Background(), session.ID); err != nil && !errors.Is(err, screening.ErrSessionNotFound) {
			res.err = errors.Join(res.err, err)
		}
	}()

	res.greeting, _, err = o.Answer(ctx, session.ID)
	if err != nil {
		res.err = err
		return res
	}

	if in.audio != nil {
		res.reply, res.session, err = o.SubmitAudio(ctx, session.ID, screening.AudioSegment{Data: in.audio, Final: true})
	} else {
		res.reply, res.session, err = o.SubmitTranscript(ctx, session.ID, in.text, true)
	}
	if err != nil {
		res.err = err
		return res
	}

	if flags.Speak && res.reply != nil && len(res.reply.Audio) > 0 {
		res.saved, res.err = saveReply(flags.OutputDir, in.name, res.reply)
	}
	return res
}

func saveReply(dir, name string, line *screening.SpokenLine) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	path := filepath.Join(dir, fmt.Sprintf("%s-reply.%s", base, line.Format))
	if err := os.WriteFile(path, line.Audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to write reply audio: %w", err)
	}
	return path, nil
}

func printOutcome(res outcome, cfg *config.Config) {
	fmt.Printf("\n=== %s ===\n", res.input.name)
	if res.err != nil && res.session.ID == "" {
		fmt.Printf("Error: %v\n", res.err)
		return
	}

	s := res.session
	fmt.Printf("Transcript: %s\n", s.FullTranscript())
	if v := s.Verdict; v != nil {
		threshold := cfg.GetFloat64("screening.spam_threshold")
		fmt.Printf("Intent: %s\n", v.Intent)
		fmt.Printf("Spam likelihood: %.4f\n", v.SpamLikelihood)
		fmt.Printf("Likely spam: %t\n", v.IsLikelySpam(threshold))
		fmt.Printf("Confidence: %.4f\n", v.Confidence)
		fmt.Printf("Sentiment: %s\n", v.Sentiment)
		fmt.Printf("Recommendation: %s\n", v.ActionRecommendation)
		fmt.Printf("Source: %s\n", v.Source)
	}
	if s.NeedsManualDecision {
		fmt.Printf("Needs manual decision: %s\n", s.ManualReason)
	}
	if s.SpamHint {
		fmt.Printf("Hint: toll-free caller number\n")
	}
	for _, e := range s.Errors {
		fmt.Printf("Adapter error (%s, %s): %s\n", e.State, e.Kind, e.Message)
	}
	if res.greeting != nil {
		fmt.Printf("Greeting: %s\n", res.greeting.Text)
	}
	if res.reply != nil {
		fmt.Printf("Reply: %s\n", res.reply.Text)
	}
	if res.saved != "" {
		fmt.Printf("Reply audio: %s\n", res.saved)
	}
	if res.err != nil {
		fmt.Printf("Error: %v\n", res.err)
	}
	fmt.Printf("Processing time: %v\n", res.duration)
}
