// Command boardclient is a headless board participant. It loads a board over
// the REST API, joins the realtime session, mirrors remote edits into an
// in-memory scene graph, and accepts simple edit commands on stdin.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"whiteboard-backend/internal/apiclient"
	"whiteboard-backend/internal/element"
	"whiteboard-backend/internal/geometry"
	"whiteboard-backend/internal/protocol"
	"whiteboard-backend/internal/reconcile"
	"whiteboard-backend/internal/scene"
	"whiteboard-backend/internal/syncsession"
	"whiteboard-backend/internal/tracker"
)

// reconcilerHandler defers handler wiring so the session can be built before
// the reconciler that feeds on it.
type reconcilerHandler struct {
	target *reconcile.Reconciler
}

func (h *reconcilerHandler) HandleUpsert(p *protocol.UpsertPayload)        { h.target.HandleUpsert(p) }
func (h *reconcilerHandler) HandleDelete(p *protocol.DeletePayload)       { h.target.HandleDelete(p) }
func (h *reconcilerHandler) HandleOrder(p *protocol.OrderPayload)         { h.target.HandleOrder(p) }
func (h *reconcilerHandler) HandleOnline(users []protocol.OnlineUser)     { h.target.HandleOnline(users) }
func (h *reconcilerHandler) HandleBoardUpdate(p *protocol.BoardUpdatePayload) {
	h.target.HandleBoardUpdate(p)
}

// rosterLogger prints presence changes.
type rosterLogger struct{}

func (rosterLogger) SetOnlineUsers(userIDs []int64) {
	log.Printf("[Client] Online users: %v", userIDs)
}

func login(apiURL, email, nickname string) (token string, userID int64, err error) {
	body, _ := json.Marshal(map[string]string{"email": email, "nickname": nickname})
	resp, err := http.Post(apiURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("login failed: status %d", resp.StatusCode)
	}

	var out struct {
		User struct {
			ID int64 `json:"id"`
		} `json:"user"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, err
	}
	return out.AccessToken, out.User.ID, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var (
		apiURL   = flag.String("api", envOr("BOARD_API_URL", "http://localhost:8080"), "REST API base URL")
		wsURL    = flag.String("ws", envOr("BOARD_WS_URL", "ws://localhost:8080"), "WebSocket base URL")
		boardID  = flag.Int64("board", 0, "board ID to join")
		email    = flag.String("email", envOr("BOARD_EMAIL", ""), "login email")
		nickname = flag.String("nickname", envOr("BOARD_NICKNAME", "headless"), "login nickname")
		vpWidth  = flag.Float64("width", 1280, "viewport width")
		vpHeight = flag.Float64("height", 720, "viewport height")
		fit      = flag.Bool("fit", false, "fit board content to the viewport")
	)
	flag.Parse()

	if *boardID == 0 || *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	token, userID, err := login(*apiURL, *email, *nickname)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	log.Printf("[Client] Logged in as user %d", userID)

	api := apiclient.New(*apiURL, token)

	ctx := context.Background()
	snap, err := api.GetBoard(ctx, *boardID)
	if err != nil {
		log.Fatalf("Failed to load board %d: %v", *boardID, err)
	}
	log.Printf("[Client] Loaded board %d (%s): %d elements, %d members",
		snap.ID, snap.Title, len(snap.Elements), len(snap.Members))

	graph := scene.NewGraph()
	renderer := element.NewMemoryRenderer(nil)

	// The socket id goes into the dial URL so the server keys this
	// connection the same way our outbound payloads do.
	socketID := uuid.New().String()
	handler := &reconcilerHandler{}
	session, err := syncsession.New(syncsession.Config{
		BoardID:  *boardID,
		UserID:   userID,
		Archived: snap.DeletedAt != nil,
		SocketID: socketID,
		Transport: &syncsession.WebsocketTransport{
			URL: fmt.Sprintf("%s/ws/boards/%d?token=%s&socket_id=%s", *wsURL, *boardID, token, socketID),
		},
		Handler: handler,
	})
	if err != nil {
		log.Fatalf("Cannot open session: %v", err)
	}

	trk := tracker.New(graph, session)
	rec := reconcile.New(graph, renderer, trk, rosterLogger{}, geometry.Viewport{
		Width:  *vpWidth,
		Height: *vpHeight,
	})
	rec.SetFitToScreen(*fit)
	handler.target = rec

	// Initial full-state load: replay the REST snapshot through the
	// reconciler so it lands with remote-origin suppression in place.
	rec.HandleUpsert(&protocol.UpsertPayload{
		WhiteboardElements: snap.Elements,
		WhiteboardID:       *boardID,
	})

	if err := session.Join(ctx); err != nil {
		log.Fatalf("Join failed: %v", err)
	}
	dims := rec.Dimensions()
	log.Printf("[Client] Joined board %d (zoom %.3f, canvas %.0fx%.0f)",
		*boardID, dims.Zoom, dims.Width, dims.Height)

	runREPL(ctx, api, *boardID, graph, trk)

	if err := session.Leave(); err != nil {
		log.Printf("[Client] Leave failed: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// runREPL reads edit commands until EOF or "quit".
//
//	rect <left> <top> <width> <height>
//	text <left> <top> <text...>
//	del <uuid>
//	front <uuid...>
//	back <uuid...>
//	ls
func runREPL(ctx context.Context, api *apiclient.Client, boardID int64, graph *scene.Graph, trk *tracker.Tracker) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return

		case "ls":
			for _, obj := range graph.Objects() {
				fmt.Printf("%-36s %-18s z=%-4d (%.0f, %.0f)\n", obj.UUID, obj.Kind, obj.ZIndex, obj.Left, obj.Top)
			}

		case "rect":
			if len(fields) != 5 {
				fmt.Println("usage: rect <left> <top> <width> <height>")
				continue
			}
			nums := make([]float64, 4)
			ok := true
			for i, f := range fields[1:] {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					ok = false
					break
				}
				nums[i] = v
			}
			if !ok {
				fmt.Println("usage: rect <left> <top> <width> <height>")
				continue
			}
			obj := &scene.Object{
				Kind:   string(element.KindRectangle),
				Left:   nums[0],
				Top:    nums[1],
				Width:  nums[2],
				Height: nums[3],
				ScaleX: 1,
				ScaleY: 1,
				Fill:   "#ffffff",
				Stroke: "#000000",
			}
			graph.Add(obj)
			if err := trk.ObjectAdded(obj); err != nil {
				log.Printf("[Client] Add broadcast failed: %v", err)
			}
			persistUpsert(ctx, api, boardID, obj)

		case "text":
			if len(fields) < 4 {
				fmt.Println("usage: text <left> <top> <text...>")
				continue
			}
			left, err1 := strconv.ParseFloat(fields[1], 64)
			top, err2 := strconv.ParseFloat(fields[2], 64)
			if err1 != nil || err2 != nil {
				fmt.Println("usage: text <left> <top> <text...>")
				continue
			}
			obj := &scene.Object{
				Kind:     string(element.KindText),
				Left:     left,
				Top:      top,
				ScaleX:   1,
				ScaleY:   1,
				Text:     strings.Join(fields[3:], " "),
				FontSize: 16,
			}
			graph.Add(obj)
			if err := trk.ObjectAdded(obj); err != nil {
				log.Printf("[Client] Add broadcast failed: %v", err)
			}
			persistUpsert(ctx, api, boardID, obj)

		case "del":
			if len(fields) != 2 {
				fmt.Println("usage: del <uuid>")
				continue
			}
			obj := graph.Find(fields[1])
			if obj == nil {
				fmt.Println("no such element")
				continue
			}
			if err := trk.ObjectsRemoved([]*scene.Object{obj}); err != nil {
				log.Printf("[Client] Delete broadcast failed: %v", err)
			}
			if err := api.DeleteElement(ctx, boardID, fields[1]); err != nil {
				log.Printf("[Client] Delete persistence failed: %v", err)
			}

		case "front", "back":
			if len(fields) < 2 {
				fmt.Printf("usage: %s <uuid...>\n", fields[0])
				continue
			}
			direction := protocol.BringToFront
			if fields[0] == "back" {
				direction = protocol.SendToBack
			}
			objs := make([]*scene.Object, 0, len(fields)-1)
			for _, id := range fields[1:] {
				if obj := graph.Find(id); obj != nil {
					objs = append(objs, obj)
				}
			}
			if len(objs) == 0 {
				fmt.Println("no such elements")
				continue
			}
			if err := trk.Reorder(direction, objs); err != nil {
				log.Printf("[Client] Reorder broadcast failed: %v", err)
			}
			if err := api.UpdateElementOrder(ctx, boardID, direction, fields[1:]); err != nil {
				log.Printf("[Client] Order persistence failed: %v", err)
			}

		default:
			fmt.Println("commands: rect, text, del, front, back, ls, quit")
		}
	}
}

func persistUpsert(ctx context.Context, api *apiclient.Client, boardID int64, obj *scene.Object) {
	wire, err := element.ToWireForm(obj)
	if err != nil {
		log.Printf("[Client] Cannot serialize element %s: %v", obj.UUID, err)
		return
	}
	entry := protocol.ElementEntry{AssetID: obj.AssetID, UUID: obj.UUID, Element: wire}
	if err := api.CreateElements(ctx, boardID, []protocol.ElementEntry{entry}); err != nil {
		log.Printf("[Client] Upsert persistence failed: %v", err)
	}
}
