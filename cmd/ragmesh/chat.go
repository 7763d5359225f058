package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hupe1980/ragmesh"
	"github.com/hupe1980/ragmesh/engine"
	"github.com/hupe1980/ragmesh/memory"
)

var (
	chatSession     string
	chatShowSources bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal",
	Long: `Start an interactive conversation. Answers stream as they are generated.

Commands:
  /stats   show the size of the conversation history
  /clear   forget the conversation
  /exit    quit`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "Session id (default: random)")
	chatCmd.Flags().BoolVar(&chatShowSources, "sources", false, "Print the context sources of each answer")
}

type chatter interface {
	Stream(ctx context.Context, sessionID, query string) (engine.Result, <-chan string)
	Clear(sessionID string)
	Stats(sessionID string) memory.Stats
}

func runChat(cmd *cobra.Command, _ []string) error {
	mesh, err := openMesh()
	if err != nil {
		return err
	}
	defer mesh.Close()

	sessionID := chatSession
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return chatLoop(cmd.Context(), mesh, sessionID, cmd.InOrStdin(), cmd.OutOrStdout(), chatShowSources)
}

// chatLoop reads one query per line until EOF or /exit.
func chatLoop(ctx context.Context, c chatter, sessionID string, in io.Reader, out io.Writer, showSources bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Fprintln(out, ragmesh.WelcomeMessage)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			c.Clear(sessionID)
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		case "/stats":
			st := c.Stats(sessionID)
			fmt.Fprintf(out, "exchanges: %d, characters: %d, estimated tokens: %d\n",
				st.Exchanges, st.Chars, st.EstimatedTokens)
			continue
		}

		res, frags := c.Stream(ctx, sessionID, line)
		for f := range frags {
			fmt.Fprint(out, f)
		}
		fmt.Fprintln(out)
		if showSources && len(res.Sources) > 0 {
			fmt.Fprintf(out, "[sources: %s]\n", strings.Join(res.Sources, ", "))
		}
	}
}
