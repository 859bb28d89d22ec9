package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/memoryserver/models"
	"github.com/wfunc/memoryserver/network"
)

type client struct {
	conn   *websocket.Conn
	area   string
	mu     sync.Mutex
	gameID string
}

// send formats and sends a message to the WebSocket server.
func (c *client) send(msgID uint16, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	packet, err := network.Encode(msgID, data)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, packet)
}

func (c *client) command(msgID uint16, cmd models.Command) error {
	c.mu.Lock()
	cmd.GameID = c.gameID
	c.mu.Unlock()
	return c.send(msgID, models.CommandEnvelope{
		CommandID:      uuid.NewString(),
		InteractableID: c.area,
		Command:        cmd,
	})
}

func (c *client) readLoop(done chan<- struct{}) {
	defer close(done)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			log.Println("Read error:", err)
			return
		}
		packet, err := network.Decode(message)
		if err != nil {
			log.Printf("Received invalid packet: %v", err)
			continue
		}
		switch packet.MsgID {
		case network.MsgTypeAreaUpdate:
			var area models.AreaModel
			if err := json.Unmarshal(packet.Data, &area); err == nil && area.Game != nil {
				c.mu.Lock()
				c.gameID = area.Game.ID
				c.mu.Unlock()
				render(area.Game.State)
			}
		case network.MsgTypeCommandResponse:
			var resp models.CommandResponse
			json.Unmarshal(packet.Data, &resp)
			if resp.Error != "" {
				log.Printf("<- command %s failed: %s", resp.CommandID, resp.Error)
			}
		case network.MsgTypeHeartbeat:
		default:
			log.Printf("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
		}
	}
}

func render(st models.GameState) {
	fmt.Printf("\n[%s] score=%d lives=%d board=%dx%d\n", st.Status, st.Score, st.Lives, st.BoardSize.Rows, st.BoardSize.Columns)
	for r := range st.GuessesBoard {
		var b strings.Builder
		for col, cell := range st.GuessesBoard[r] {
			switch {
			case cell == models.CellCorrect:
				b.WriteString(" O")
			case cell == models.CellIncorrect:
				b.WriteString(" X")
			case st.Status == models.StatusWaitingToStart && st.SolutionBoard[r][col]:
				b.WriteString(" #")
			default:
				b.WriteString(" .")
			}
		}
		fmt.Println(b.String())
	}
}

func (c *client) handleLine(text string) error {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	ints := func(from int) []int {
		var out []int
		for _, f := range fields[from:] {
			if n, err := strconv.Atoi(f); err == nil {
				out = append(out, n)
			}
		}
		return out
	}

	switch fields[0] {
	case "join":
		return c.command(network.MsgTypeJoinGame, models.Command{})
	case "start":
		return c.command(network.MsgTypeStartGame, models.Command{CompetitiveMode: true})
	case "casual":
		s := models.Settings{
			StartingLives:           3,
			StartingBoardSize:       models.BoardSize{Rows: 4, Columns: 4},
			MemorizationTimeSeconds: 5,
			GuessingTimeSeconds:     15,
			IncreasingDifficulty:    true,
			TargetTilesPercentage:   0.25,
		}
		if n := ints(1); len(n) == 2 {
			s.StartingBoardSize = models.BoardSize{Rows: n[0], Columns: n[1]}
		}
		return c.command(network.MsgTypeStartGame, models.Command{CustomizedSettings: &s})
	case "move", "m":
		n := ints(1)
		if len(n) != 2 {
			return fmt.Errorf("usage: move <row> <column>")
		}
		return c.command(network.MsgTypeGameMove, models.Command{Move: &models.Move{Row: n[0], Column: n[1], TransmitScore: true}})
	case "leave":
		return c.command(network.MsgTypeLeaveGame, models.Command{})
	case "hide", "show":
		visible := fields[0] == "show"
		return c.send(network.MsgTypeLeaderboardVisibility, models.CommandEnvelope{
			CommandID: uuid.NewString(),
			Command:   models.Command{Type: models.CommandLeaderboardVisibility, SetLeaderboardVisible: &visible},
		})
	default:
		return fmt.Errorf("unknown command %q (join, start, casual [rows cols], move r c, leave, hide, show)", fields[0])
	}
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	username := flag.String("username", "player", "display name")
	area := flag.String("area", "memory-game-1", "memory game area id")
	token := flag.String("token", "", "administrator token")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	q := url.Values{"username": {*username}, "area": {*area}}
	if *token != "" {
		q.Set("token", *token)
	}
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws", RawQuery: q.Encode()}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	c := &client{conn: conn, area: *area}

	done := make(chan struct{})
	go c.readLoop(done)

	lines := make(chan string)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			text, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- strings.TrimSpace(text)
		}
	}()

	log.Println("Client started. Commands: join, start, casual [rows cols], move r c, leave, hide, show")
	heartbeat := time.NewTicker(10 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			if err := c.send(network.MsgTypeHeartbeat, nil); err != nil {
				log.Println("Write error:", err)
				return
			}
		case text, ok := <-lines:
			if !ok {
				return
			}
			if err := c.handleLine(text); err != nil {
				log.Println(err)
			}
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
