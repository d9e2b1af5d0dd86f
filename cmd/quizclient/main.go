package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/animeshcode007/quizerr-go-client/internal/app"
	"github.com/animeshcode007/quizerr-go-client/internal/config"
	"github.com/animeshcode007/quizerr-go-client/internal/directory"
	"github.com/animeshcode007/quizerr-go-client/internal/events"
	"github.com/animeshcode007/quizerr-go-client/internal/identity"
	"github.com/animeshcode007/quizerr-go-client/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}

	clock := clockwork.NewRealClock()
	store := identity.NewStore(cfg.ProfilePath)
	conn := transport.NewConn(cfg.Transport(), clock)
	if *verbose {
		tracePushes(conn)
	}

	a := app.New(conn, store, clock, nil)
	defer a.Close()

	fmt.Println("Quizerr — multiplayer quiz")
	if name := store.Name(); name != "" {
		fmt.Printf("Welcome back, %s! (type 'go' to continue, or 'name <new name>')\n", name)
	} else {
		fmt.Println("Enter 'name <your name>' to begin.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		printStatus(a)
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "quit", "exit":
			return
		case "help":
			printHelp()
		case "name":
			if err := a.SubmitName(arg); err != nil {
				fmt.Println("!", err)
			}
		case "go":
			if a.PlayerName() == "" {
				fmt.Println("! set a name first")
				continue
			}
			if err := a.SubmitName(a.PlayerName()); err != nil {
				fmt.Println("!", err)
			}
		default:
			dispatch(a, cmd, arg)
		}
	}
}

// dispatch routes screen-specific commands.
func dispatch(a *app.App, cmd, arg string) {
	switch a.Screen() {
	case app.ScreenDirectory:
		directoryCommand(a, cmd, arg)
	case app.ScreenLobby:
		lobbyCommand(a, cmd)
	case app.ScreenGame:
		gameCommand(a, cmd, arg)
	default:
		fmt.Println("! unknown command, try 'help'")
	}
}

func directoryCommand(a *app.App, cmd, arg string) {
	d := a.Directory()
	if d == nil {
		return
	}
	switch cmd {
	case "ls", "refresh":
		d.Refresh(func(err error) {
			if err != nil {
				fmt.Println("!", err)
			}
		})
	case "create":
		name, category, ok := strings.Cut(arg, "/")
		name = strings.TrimSpace(name)
		category = strings.TrimSpace(category)
		if !ok || name == "" {
			name = directory.DefaultLobbyName(a.PlayerName())
		}
		if category == "" {
			category = directory.Categories[0]
		}
		d.Create(a.PlayerName(), name, category, func(lobbyID string, err error) {
			if err != nil {
				fmt.Println("!", err)
				return
			}
			a.EnterLobby(lobbyID)
		})
	case "join":
		if arg == "" {
			fmt.Println("! usage: join <lobby id>")
			return
		}
		a.EnterLobby(arg)
	default:
		fmt.Println("! unknown command, try 'help'")
	}
}

func lobbyCommand(a *app.App, cmd string) {
	sess := a.Lobby()
	if sess == nil {
		return
	}
	switch cmd {
	case "start":
		sess.StartGame(func(err error) {
			if err != nil {
				fmt.Println("!", err)
			}
		})
	case "leave":
		sess.Leave(func(err error) {
			if err != nil {
				fmt.Println("!", err)
			}
		})
	case "invite":
		fmt.Printf("invite code: %s\n", sess.LobbyID())
	default:
		fmt.Println("! unknown command, try 'help'")
	}
}

func gameCommand(a *app.App, cmd, arg string) {
	sess := a.Game()
	if sess == nil {
		return
	}
	switch cmd {
	case "answer":
		idx, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Println("! usage: answer <option number>")
			return
		}
		sess.SubmitAnswer(idx-1, func(err error) {
			if err != nil {
				fmt.Println("!", err)
			}
		})
	default:
		fmt.Println("! unknown command, try 'help'")
	}
}

func printStatus(a *app.App) {
	if notice := a.Notice(); notice != "" {
		fmt.Println("*", notice)
	}

	switch a.Screen() {
	case app.ScreenDirectory:
		d := a.Directory()
		if d == nil {
			return
		}
		lobbies := d.Lobbies()
		if d.Loading() {
			fmt.Println("loading lobbies...")
			return
		}
		if msg := d.LastError(); msg != "" {
			fmt.Println("! lobby list unavailable:", msg)
		}
		if len(lobbies) == 0 {
			fmt.Println("no active lobbies — 'create <name> / <category>' to make one")
			return
		}
		for _, lb := range lobbies {
			fmt.Printf("  [%s] %s (%s) %d/%d %s — host %s\n",
				lb.ID, lb.Name, lb.Category, lb.PlayerCount, lb.MaxPlayers, lb.Status, lb.HostName)
		}

	case app.ScreenLobby:
		sess := a.Lobby()
		if sess == nil {
			return
		}
		if msg := sess.ErrorMessage(); msg != "" {
			fmt.Println("!", msg)
			return
		}
		details := sess.Details()
		if details == nil {
			fmt.Println("joining lobby...")
			return
		}
		fmt.Printf("lobby %q (%s) — %d/%d players, host %s\n",
			details.Name, details.Settings.Category,
			len(details.Players), details.Settings.MaxPlayers, details.Host.Name)
		for _, p := range details.Players {
			marker := " "
			if p.ID == details.Host.ID {
				marker = "*"
			}
			fmt.Printf("  %s %s\n", marker, p.Name)
		}
		if sess.IsHost() {
			fmt.Println("you are the host — 'start' when ready")
		}

	case app.ScreenGame:
		printGame(a)
	}
}

func printGame(a *app.App) {
	sess := a.Game()
	if sess == nil {
		return
	}
	if msg := sess.ErrorMessage(); msg != "" {
		fmt.Println("! game error:", msg)
		return
	}

	if sess.WaitStatus() == "disconnected" {
		fmt.Println("connection problem — trying to reconnect...")
		return
	}
	round := sess.Round()
	if round == nil {
		if sess.WaitStatus() == "stalled" {
			fmt.Println("still no question — the game may not have started")
		} else {
			fmt.Println("waiting for the first question...")
		}
		return
	}

	urgency := ""
	if round.Urgent() {
		urgency = " (!)"
	}
	fmt.Printf("Q%d/%d [%ds left%s]: %s\n", round.Number, round.Total, round.TimeLeft, urgency, round.Question.Text)
	for i, opt := range round.Question.Options {
		marker := " "
		if round.AnswerIndex != nil && *round.AnswerIndex == i {
			marker = ">"
		}
		if round.Resolution != nil && round.Resolution.CorrectIndex == i {
			marker = "="
		}
		fmt.Printf("  %s %d. %s\n", marker, i+1, opt)
	}
	if res := round.Resolution; res != nil {
		if res.WasCorrect {
			fmt.Printf("correct! +%d points\n", res.PointsEarned)
		} else {
			fmt.Printf("the correct answer was option %d\n", res.CorrectIndex+1)
		}
	}

	self := sess.LocalPlayerID()
	for _, p := range sess.Scores() {
		marker := " "
		if p.ID == self {
			marker = ">"
		}
		fmt.Printf("  %s %s: %d\n", marker, p.Name, p.Score)
	}
}

// tracePushes logs every decoded server push at debug level.
func tracePushes(conn *transport.Conn) {
	for _, event := range events.Pushes {
		conn.On(event, func(data json.RawMessage) {
			payload, err := events.ParsePushPayload(event, data)
			if err != nil {
				log.Debug().Err(err).Str("event", event).Msg("undecodable push")
				return
			}
			log.Debug().Str("event", event).Interface("payload", payload).Msg("server push")
		})
	}
}

func printHelp() {
	fmt.Println(`commands:
  name <name>          set your display name
  ls                   refresh the lobby list
  create <name> / <category>
  join <lobby id>      join a lobby
  invite               show this lobby's invite code
  start                start the game (host only)
  leave                leave the lobby
  answer <n>           answer the current question
  quit`)
}
