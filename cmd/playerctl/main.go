// Package main provides the player control CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"google.golang.org/protobuf/types/known/structpb"

	apiconnect "github.com/osa030/spinbox/internal/api/connect"
)

var (
	app    = kingpin.New("playerctl", "spinbox player control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token").Envar("SPINBOX_CONTROL_TOKEN").String()

	statusCmd = app.Command("status", "Show the player status")

	addCmd = app.Command("add", "Add a song to the playlist")
	addURL = addCmd.Arg("url", "Audio, video or YouTube URL").Required().String()

	removeCmd   = app.Command("remove", "Remove a playlist entry")
	removeIndex = removeCmd.Arg("index", "Playlist index (0-based)").Required().Int32()

	playCmd   = app.Command("play", "Play a playlist entry")
	playIndex = playCmd.Arg("index", "Playlist index (0-based)").Required().Int32()

	toggleCmd  = app.Command("toggle", "Toggle play/pause")
	shuffleCmd = app.Command("shuffle", "Toggle shuffle")
	loopCmd    = app.Command("loop", "Toggle loop")
	watchCmd   = app.Command("watch", "Watch notices")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewPlayerServiceClient(
		http.DefaultClient,
		*server,
		connect.WithInterceptors(apiconnect.NewClientTokenInterceptor(*token)),
	)

	ctx := context.Background()

	switch command {
	case statusCmd.FullCommand():
		st, err := client.GetStatus(ctx)
		exitOnError(err)
		printStatus(st)
	case addCmd.FullCommand():
		s, err := client.AddSong(ctx, *addURL)
		exitOnError(err)
		fmt.Printf("Added: %s\n", formatSong(s))
	case removeCmd.FullCommand():
		s, err := client.RemoveSong(ctx, *removeIndex)
		exitOnError(err)
		fmt.Printf("Removed: %s\n", formatSong(s))
	case playCmd.FullCommand():
		exitOnError(client.PlaySong(ctx, *playIndex))
		fmt.Printf("Playing entry %d\n", *playIndex)
	case toggleCmd.FullCommand():
		st, err := client.TogglePlayPause(ctx)
		exitOnError(err)
		fmt.Printf("State: %s\n", formatState(st.Fields["state"].GetStringValue()))
	case shuffleCmd.FullCommand():
		on, err := client.ToggleShuffle(ctx)
		exitOnError(err)
		fmt.Printf("Shuffle: %s\n", onOff(on))
	case loopCmd.FullCommand():
		on, err := client.ToggleLoop(ctx)
		exitOnError(err)
		fmt.Printf("Loop: %s\n", onOff(on))
	case watchCmd.FullCommand():
		watch(ctx, client)
	}
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Printf("Error [%s]: %v\n", connect.CodeOf(err), err)
	os.Exit(1)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func formatState(state string) string {
	switch state {
	case "playing":
		return "▶️  Playing"
	case "paused":
		return "⏸  Paused"
	case "idle":
		return "⏹  Idle"
	default:
		return "❓ Unknown"
	}
}

func formatSong(s *structpb.Struct) string {
	if s == nil {
		return "-"
	}
	f := s.GetFields()
	return fmt.Sprintf("%s [%s] %s", f["title"].GetStringValue(), f["kind"].GetStringValue(), f["url"].GetStringValue())
}

func printStatus(st *structpb.Struct) {
	f := st.GetFields()
	fmt.Printf("State:   %s\n", formatState(f["state"].GetStringValue()))
	fmt.Printf("Shuffle: %s\n", onOff(f["shuffle"].GetBoolValue()))
	fmt.Printf("Loop:    %s\n", onOff(f["loop"].GetBoolValue()))
	fmt.Printf("Pages:   %d\n", int(f["clients"].GetNumberValue()))

	var currentURL string
	if cur := f["current"].GetStructValue(); cur != nil {
		currentURL = cur.GetFields()["url"].GetStringValue()
		fmt.Printf("Current: %s\n", formatSong(cur))
	}

	entries := f["playlist"].GetListValue().GetValues()
	fmt.Printf("\nPlaylist (%d):\n", len(entries))
	for i, v := range entries {
		s := v.GetStructValue()
		marker := " "
		if currentURL != "" && s.GetFields()["url"].GetStringValue() == currentURL {
			marker = "*"
		}
		fmt.Printf(" %s %2d. %s\n", marker, i, formatSong(s))
	}
}

func watch(ctx context.Context, client *apiconnect.PlayerServiceClient) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := client.WatchNotices(ctx)
	exitOnError(err)
	defer stream.Close()

	fmt.Println("Watching notices. Press Ctrl+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nStopping...")
		cancel()
	}()

	for stream.Receive() {
		f := stream.Msg().GetFields()
		fmt.Printf("[%d] %-7s %-20s %s\n",
			int64(f["sequenceNo"].GetNumberValue()),
			f["level"].GetStringValue(),
			f["code"].GetStringValue(),
			f["message"].GetStringValue(),
		)
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}
