// Command translator-cli is a line-oriented terminal client for a
// translatord instance. It runs the full client session engine: the REST
// store backend, the WebSocket change feed with reconciliation, and the
// send pipeline with server-proxied translation.
//
// Commands at the prompt:
//
//	/list            print the conversation as seen by this role
//	/history         print the conversation grouped by day, with stats
//	/search <query>  search messages and print highlighted snippets
//	/summary         request a medical summary
//	/assist <q>      ask the health assistant a follow-up question
//	/clear           delete the whole conversation
//	/quit            exit
//
// Any other line is sent as a message.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/api"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/app"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/realtime"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		apiURL      = flag.String("api", "http://127.0.0.1:8080", "translatord REST base URL")
		wsURL       = flag.String("ws", "", "change-feed URL (derived from -api when empty)")
		roleFlag    = flag.String("role", "doctor", "viewer role: doctor or patient")
		patientLang = flag.String("patient-lang", string(chat.DefaultPatientLanguage), "patient language code")
		logLevel    = flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	role := chat.SenderRole(*roleFlag)
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", *roleFlag)
	}
	lang := chat.Language(*patientLang)
	if !lang.Supported() {
		return fmt.Errorf("unsupported patient language %q", *patientLang)
	}

	log := app.NewLogger(*logLevel, "pretty")

	backend, err := chat.NewHTTPStore(*apiURL)
	if err != nil {
		return err
	}
	services, err := api.NewServiceClient(*apiURL)
	if err != nil {
		return err
	}

	feedURL := strings.TrimSpace(*wsURL)
	if feedURL == "" {
		feedURL = deriveFeedURL(*apiURL)
	}
	feed, err := realtime.NewFeed(log, feedURL)
	if err != nil {
		return err
	}

	store := session.NewStore(log, backend)
	composer := session.NewComposer(log, store, services, services, services, services, lang)
	reconciler := session.NewReconciler(log, store, feed)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.InitialLoad(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	go func() { _ = feed.Run(ctx) }()
	go func() { _ = reconciler.Run(ctx) }()

	notify, unsubscribe := store.Subscribe()
	defer unsubscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-notify:
				if !ok {
					return
				}
				fmt.Println("* conversation updated (/list to view)")
			}
		}
	}()

	fmt.Printf("connected to %s as %s (%d messages)\n", *apiURL, role, store.Len())

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%s> ", role)
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return nil
		case line == "/list":
			printConversation(store.Snapshot(), role)
		case line == "/history":
			printHistory(store.Snapshot())
		case strings.HasPrefix(line, "/search "):
			printSearch(store.Snapshot(), strings.TrimPrefix(line, "/search "))
		case line == "/summary":
			printSummary(ctx, composer, role)
		case strings.HasPrefix(line, "/assist "):
			printAssist(ctx, services, role, lang, strings.TrimPrefix(line, "/assist "))
		case line == "/clear":
			if err := store.Clear(ctx); err != nil {
				fmt.Println("clear failed:", err)
			}
		case strings.HasPrefix(line, "/"):
			fmt.Println("unknown command:", line)
		default:
			sendText(ctx, composer, role, line)
		}
	}
}

// deriveFeedURL maps an http(s) REST base to the /ws endpoint.
func deriveFeedURL(apiURL string) string {
	base := strings.TrimRight(apiURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	default:
		return "ws://" + base + "/ws"
	}
}

func sendText(ctx context.Context, composer *session.Composer, role chat.SenderRole, text string) {
	res, err := composer.SendText(ctx, role, text)
	switch {
	case err != nil:
		fmt.Println("send failed:", err)
	case res.Superseded:
		fmt.Println("send superseded by a newer message")
	case res.Degraded:
		fmt.Println("sent without translation (service unavailable)")
	}
}

func printConversation(msgs []chat.Message, viewer chat.SenderRole) {
	if len(msgs) == 0 {
		fmt.Println("(no messages)")
		return
	}
	for _, m := range msgs {
		dc := session.SelectContent(m, viewer)
		marker := " "
		if m.SenderRole == viewer {
			marker = "*"
		}
		fmt.Printf("%s [%s] %s: %s\n", marker, m.CreatedAt.Local().Format("15:04"), m.SenderRole, dc.Primary)
		if dc.HasSecondary() {
			fmt.Printf("      (%s)\n", dc.Secondary)
		}
		if m.HasAudio() {
			fmt.Printf("      audio: %s\n", *m.AudioURL)
		}
	}
}

func printHistory(msgs []chat.Message) {
	groups := session.GroupByDay(msgs, time.Now())
	for _, g := range groups {
		fmt.Printf("-- %s (%d) --\n", g.Label, len(g.Messages))
		for _, m := range g.Messages {
			fmt.Printf("  [%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.SenderRole, m.OriginalContent)
		}
	}
	st := session.Aggregate(msgs)
	fmt.Printf("total=%d doctor=%d patient=%d audio=%d\n", st.Total, st.Doctor, st.Patient, st.Audio)
}

func printSearch(msgs []chat.Message, query string) {
	results := session.Search(msgs, query)
	if len(results) == 0 {
		fmt.Println("(no matches)")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%s] %s: %s[%s]%s\n", i+1,
			r.Message.CreatedAt.Local().Format("Jan 2 15:04"),
			r.Message.SenderRole, r.Before, r.Matched, r.After)
	}
}

// printAssist asks the server-side assistant a follow-up question. Answers
// come back in the viewer's language: English for the doctor, the session
// language for the patient.
func printAssist(ctx context.Context, services *api.ServiceClient, role chat.SenderRole, patientLang chat.Language, question string) {
	output := chat.DefaultDoctorLanguage
	if role == chat.RolePatient {
		output = patientLang
	}
	answer, err := services.Assist(ctx, strings.TrimSpace(question), nil, output)
	if err != nil {
		fmt.Println("assist failed:", err)
		return
	}
	fmt.Println(answer)
}

func printSummary(ctx context.Context, composer *session.Composer, role chat.SenderRole) {
	sum, err := composer.Summarize(ctx, role)
	if err != nil {
		fmt.Println("summary failed:", err)
		return
	}
	fmt.Printf("symptoms:   %s\n", strings.Join(sum.Symptoms, "; "))
	fmt.Printf("medications: %s\n", strings.Join(sum.Medications, "; "))
	fmt.Printf("follow-up:  %s\n", strings.Join(sum.FollowUpActions, "; "))
	fmt.Printf("(%d messages, %s)\n", sum.MessageCount, sum.Timestamp.Local().Format(time.RFC822))
}
