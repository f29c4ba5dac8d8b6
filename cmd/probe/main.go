// Command probe runs one question against a corpus document from the
// terminal: it loads the document through the relay, builds its clause index,
// asks the answer service and prints every citation with the action it
// resolves to. The first clipboard hint is copied to the system clipboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"compliance-navigator-be/internal/bootstrap"
	"compliance-navigator-be/internal/config"
	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/pkg/answer"
	"compliance-navigator-be/pkg/citation"
	"compliance-navigator-be/pkg/clauseindex"
	"compliance-navigator-be/pkg/corpus"
	"compliance-navigator-be/pkg/navigation"
	"compliance-navigator-be/pkg/proxy"
	"compliance-navigator-be/pkg/renderer"

	"github.com/atotto/clipboard"
	"github.com/fatih/color"
)

type systemClipboard struct{}

func (systemClipboard) Copy(_ context.Context, text string) error {
	return clipboard.WriteAll(text)
}

type consoleNotifier struct{}

func (consoleNotifier) Notify(_ context.Context, message string, _ time.Duration) error {
	color.Magenta("  hint: %s", message)
	return nil
}

func main() {
	cfg := config.Load()

	docID := flag.String("doc", "", "corpus document id")
	question := flag.String("q", "", "question to ask")
	relay := flag.String("relay", cfg.Relay.ClientURL, "relay endpoint")
	variant := flag.String("renderer", "native", "renderer to resolve actions for: embed, pdfjs, native or none")
	flag.Parse()

	if *docID == "" || *question == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(cfg, *docID, *question, *relay, *variant); err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, docID, question, relay, variant string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Answer.Timeout+cfg.Relay.Timeout)
	defer cancel()
	log := logger.NewNopLogger()

	catalog, err := corpus.LoadFile(cfg.Corpus.DocumentsFile)
	if err != nil {
		return err
	}
	entry, err := catalog.Get(docID)
	if err != nil {
		return err
	}

	color.Cyan("→ Loading %s", entry.DisplayLabel)
	doc, err := proxy.NewClient(relay, cfg.Relay.Timeout).Load(ctx, entry.DocumentRef)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	color.Green("  %d bytes via %s", len(doc.Bytes), doc.RelayURL)

	extracted, err := clauseindex.NewBuilder(log, time.Minute).Build(ctx, doc.Bytes)
	if err != nil {
		color.Yellow("  clause index extraction failed: %v", err)
	}
	index := navigation.Merge(navigation.Index(entry.Clauses), extracted)
	color.Green("  %d clauses indexed", len(index))

	answers, err := bootstrap.NewAnswerService(cfg.Answer)
	if err != nil {
		return err
	}
	color.Cyan("→ Asking: %s", question)
	res, err := answers.Ask(ctx, answer.Request{
		Question:          question,
		DocumentReference: entry.ID,
		TopK:              cfg.Answer.TopK,
		MaxWords:          cfg.Answer.MaxWords,
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	printAnswer(res.AnswerText)

	citations := citation.Extract(res.AnswerText)
	if len(citations) == 0 {
		color.Yellow("No citations in the answer.")
		return nil
	}

	actions := navigation.ResolveAll(citations, capabilityOf(variant), index, 1)
	executor := &navigation.Executor{
		Logger:    log,
		Clipboard: systemClipboard{},
		Notifier:  consoleNotifier{},
		Platform:  func() string { return runtime.GOOS },
	}

	hinted := false
	for i, a := range actions {
		switch a.Kind {
		case navigation.ActionSearch:
			fmt.Printf("  [%d] %s → search %q\n", i, color.BlueString(a.Citation.RawText), a.Target)
		case navigation.ActionPageJump:
			fmt.Printf("  [%d] %s → page %d\n", i, color.BlueString(a.Citation.RawText), a.Page)
		case navigation.ActionClipboardHint:
			fmt.Printf("  [%d] %s → clipboard %q\n", i, color.BlueString(a.Citation.RawText), a.Target)
			if !hinted {
				hinted = true
				if err := executor.Execute(ctx, a, 1, nil); err != nil {
					color.Yellow("  hint failed: %v", err)
				}
			}
		}
	}
	return nil
}

// printAnswer highlights citations inside the answer text.
func printAnswer(text string) {
	bold := color.New(color.FgHiBlue, color.Bold).SprintFunc()
	fmt.Println()
	for _, seg := range citation.Segments(text) {
		if seg.Citation != nil {
			fmt.Print(bold(seg.Text))
			continue
		}
		fmt.Print(seg.Text)
	}
	fmt.Print("\n\n")
}

func capabilityOf(variant string) renderer.Capability {
	switch renderer.Variant(variant) {
	case renderer.VariantEmbed, renderer.VariantPDFJS:
		return renderer.CanSearch | renderer.CanJumpToPage
	case renderer.VariantNative:
		return renderer.CanJumpToPage
	default:
		return renderer.None
	}
}
