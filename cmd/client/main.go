// Terminal client for the DM hub. It authenticates over REST, keeps a live
// WebSocket session, and runs the notification filter the same way a browser
// client would: alerts are suppressed for the conversation currently open.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"feed-lab/domain/dm"
	"feed-lab/domain/event"
	"feed-lab/notify"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	ServerURL       string        `envconfig:"SERVER_URL" default:"http://localhost:8080"`
	Username        string        `envconfig:"CHAT_USERNAME" required:"true"`
	Password        string        `envconfig:"CHAT_PASSWORD" required:"true"`
	NotificationTTL time.Duration `envconfig:"NOTIFICATION_TTL" default:"15s"`
}

type outboundFrame struct {
	Type       string `json:"type"`
	ReceiverID int    `json:"receiverId"`
	Content    string `json:"content"`
}

type inboundFrame struct {
	Type    string                `json:"type"`
	Payload event.MessageReceived `json:"payload"`
	Code    string                `json:"code"`
	Message string                `json:"message"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	token, selfID, err := login(config)
	if err != nil {
		return exitRuntime, err
	}
	color.Green.Printf("Logged in as %s (id=%d)\n", config.Username, selfID)

	conn, err := dialHub(config.ServerURL, token)
	if err != nil {
		return exitRuntime, err
	}
	defer conn.Close()

	filter := notify.NewFilter(selfID, config.NotificationTTL)
	defer filter.Close()

	done := make(chan struct{})
	go readLoop(conn, filter, selfID, done)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		_ = conn.Close()
	}()

	inputLoop(config, conn, filter, token)
	<-done
	return exitOK, nil
}

func readLoop(conn *websocket.Conn, filter *notify.Filter, selfID dm.UserID, done chan struct{}) {
	defer close(done)
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			color.Yellow.Println("Connection closed")
			return
		}
		switch frame.Type {
		case "messageReceived":
			p := frame.Payload
			if filter.Handle(p) {
				color.Cyan.Printf("\n[notification] %s: %s\n> ", p.SenderName, p.Content)
			} else if p.SenderID == selfID {
				color.Gray.Printf("\n[sent] to %s: %s\n> ", p.ReceiverName, p.Content)
			} else {
				fmt.Printf("\n%s: %s\n> ", p.SenderName, p.Content)
			}
		case "error":
			color.Red.Printf("\n[%s] %s\n> ", frame.Code, frame.Message)
		}
	}
}

func inputLoop(config Config, conn *websocket.Conn, filter *notify.Filter, token string) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case strings.HasPrefix(line, "/open "):
			if id, err := strconv.Atoi(strings.TrimPrefix(line, "/open ")); err == nil {
				partner := dm.UserID(id)
				filter.SetActiveConversation(&partner)
				color.Green.Printf("Conversation %d open\n", id)
			}
		case line == "/close":
			filter.SetActiveConversation(nil)
		case strings.HasPrefix(line, "/history "):
			if id, err := strconv.Atoi(strings.TrimPrefix(line, "/history ")); err == nil {
				printHistory(config.ServerURL, token, id)
			}
		case strings.HasPrefix(line, "/send "):
			parts := strings.SplitN(strings.TrimPrefix(line, "/send "), " ", 2)
			if len(parts) != 2 {
				color.Red.Println("usage: /send <userId> <message>")
				break
			}
			id, err := strconv.Atoi(parts[0])
			if err != nil {
				color.Red.Println("usage: /send <userId> <message>")
				break
			}
			_ = conn.WriteJSON(outboundFrame{Type: "sendMessage", ReceiverID: id, Content: parts[1]})
		case line != "":
			color.Yellow.Println("commands: /send /open /close /history /quit")
		}
		fmt.Print("> ")
	}
}

func login(config Config) (string, dm.UserID, error) {
	body, _ := json.Marshal(map[string]string{
		"username": config.Username,
		"password": config.Password,
	})
	resp, err := http.Post(config.ServerURL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
		User  struct {
			ID dm.UserID `json:"id"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, err
	}
	return out.Token, out.User.ID, nil
}

func dialHub(serverURL, token string) (*websocket.Conn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	hubURL := fmt.Sprintf("%s://%s/hubs/chat?access_token=%s", scheme, u.Host, url.QueryEscape(token))
	conn, _, err := websocket.DefaultDialer.Dial(hubURL, nil)
	return conn, err
}

func printHistory(serverURL, token string, otherID int) {
	req, _ := http.NewRequest(http.MethodGet,
		fmt.Sprintf("%s/conversation-messages/%d", serverURL, otherID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		color.Red.Println("history failed:", err)
		return
	}
	defer resp.Body.Close()

	var messages []struct {
		SenderName string    `json:"senderName"`
		Content    string    `json:"content"`
		CreatedAt  time.Time `json:"createdAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		color.Red.Println("history decode failed:", err)
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "From", "Message"})
	for _, m := range messages {
		table.Append([]string{m.CreatedAt.Local().Format("15:04:05"), m.SenderName, m.Content})
	}
	table.Render()
}
