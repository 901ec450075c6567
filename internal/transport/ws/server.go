package ws

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"kitchencraft.ai/internal/catalogs"
	"kitchencraft.ai/internal/cooking"
	"kitchencraft.ai/internal/kitchen"
	"kitchencraft.ai/internal/protocol"
	"kitchencraft.ai/internal/recipe"
)

type Generator interface {
	GenerateRecipeForDish(ctx context.Context, dishName, category string) (*recipe.RecipeData, error)
}

// Kitchen is the set of station operations reachable over the socket.
// *kitchen.Kitchen implements it.
type Kitchen interface {
	Place(ctx context.Context, pos kitchen.Pos, kind cooking.Kind) error
	Break(ctx context.Context, pos kitchen.Pos) ([]cooking.IngredientEntry, error)
	AddItem(ctx context.Context, pos kitchen.Pos, it cooking.Item) error
	Use(ctx context.Context, pos kitchen.Pos, tool cooking.ToolRole) (cooking.Action, error)
	StopCooking(ctx context.Context, pos kitchen.Pos) (bool, error)
	CycleHeat(ctx context.Context, pos kitchen.Pos) (cooking.HeatLevel, error)
	RemoveItem(ctx context.Context, pos kitchen.Pos) (cooking.Item, error)
	TakeFood(ctx context.Context, pos kitchen.Pos, grams int) (int, error)
	FillContainer(ctx context.Context, pos kitchen.Pos, c cooking.Container) (cooking.Container, error)
	Status(ctx context.Context, pos kitchen.Pos) (cooking.StationStatus, error)
	StoreRecipe(ctx context.Context, pos kitchen.Pos, rd *recipe.RecipeData) (cooking.FoodResult, error)
}

// Catalog resolves the item ids carried by station commands.
type Catalog interface {
	Item(id string, count int) (cooking.Item, bool)
	ToolRole(id string) cooking.ToolRole
	Container(id string) (cooking.ContainerKind, bool)
}

type RecipeIndex interface {
	RecordRecipe(dish, category string, rd *recipe.RecipeData)
}

type Options struct {
	// RequestTimeout bounds one request from decode to reply.
	RequestTimeout time.Duration
	// MaxInFlight bounds concurrent recipe requests per connection.
	MaxInFlight int
	// CommandTimeout bounds one station command.
	CommandTimeout time.Duration
	Index          RecipeIndex
	// Catalog defaults to the embedded catalogs.
	Catalog Catalog
}

type Server struct {
	gen     Generator
	kitchen Kitchen
	catalog Catalog
	index   RecipeIndex
	log     *log.Logger

	timeout     time.Duration
	cmdTimeout  time.Duration
	maxInFlight int

	upgrader websocket.Upgrader
}

func NewServer(gen Generator, k Kitchen, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 4
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 5 * time.Second
	}
	if opts.Catalog == nil {
		if cats, err := catalogs.Default(); err == nil {
			opts.Catalog = cats
		} else {
			logger.Printf("ws: default catalogs: %v", err)
		}
	}
	return &Server{
		gen:         gen,
		kitchen:     k,
		catalog:     opts.Catalog,
		index:       opts.Index,
		log:         logger,
		timeout:     opts.RequestTimeout,
		cmdTimeout:  opts.CommandTimeout,
		maxInFlight: opts.MaxInFlight,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(protocol.MaxFrameBytes)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, 16)

		// Writer goroutine.
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		var g errgroup.Group
		g.SetLimit(s.maxInFlight)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			// Station commands run in arrival order on the reader; recipe
			// requests wait on the model and run beside it.
			if p, err := protocol.DecodeFrame(msg); err == nil && p.ID == protocol.PacketStationCommand {
				cmd, err := protocol.DecodeStationCommand(msg)
				if err != nil {
					s.log.Printf("ws: bad station command from %s: %v", r.RemoteAddr, err)
					s.send(ctx, out, &protocol.StationResult{Code: protocol.ErrProtoBadRequest})
					continue
				}
				if strings.TrimSpace(cmd.RequestID) == "" {
					cmd.RequestID = uuid.NewString()
				}
				res := s.HandleStation(ctx, cmd)
				s.send(ctx, out, &res)
				continue
			}
			req, err := protocol.DecodeRecipeRequest(msg)
			if err != nil {
				s.log.Printf("ws: bad request from %s: %v", r.RemoteAddr, err)
				s.send(ctx, out, &protocol.RecipeResponse{Code: protocol.ErrProtoBadRequest})
				continue
			}
			if strings.TrimSpace(req.RequestID) == "" {
				req.RequestID = uuid.NewString()
			}
			g.Go(func() error {
				resp := s.Handle(ctx, req)
				s.send(ctx, out, &resp)
				return nil
			})
		}

		_ = g.Wait()
		<-writerDone
	}
}

// Handle runs one request: generate, store into the AI kitchen, reply. A
// generated recipe is always returned; a refused store only sets Code.
func (s *Server) Handle(ctx context.Context, req protocol.RecipeRequest) protocol.RecipeResponse {
	resp := protocol.RecipeResponse{RequestID: req.RequestID}
	if strings.TrimSpace(req.DishName) == "" {
		resp.Code = protocol.ErrProtoBadRequest
		return resp
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rd, err := s.gen.GenerateRecipeForDish(ctx, req.DishName, req.Category)
	if err != nil || rd == nil {
		s.log.Printf("ws: request=%s dish=%q: generate: %v", req.RequestID, req.DishName, err)
		resp.Code = protocol.ErrRecipeUnavailable
		return resp
	}
	if s.index != nil {
		s.index.RecordRecipe(req.DishName, req.Category, rd)
	}
	resp.Success = true
	resp.Recipe = rd
	pos := kitchen.PosFromArray(req.Pos)
	if _, err := s.kitchen.StoreRecipe(ctx, pos, rd); err != nil {
		s.log.Printf("ws: request=%s dish=%q pos=%s: store: %v", req.RequestID, req.DishName, pos, err)
		resp.Code = codeFor(err)
	}
	return resp
}

type frame interface {
	Encode() ([]byte, error)
}

func (s *Server) send(ctx context.Context, out chan<- []byte, resp frame) {
	b, err := resp.Encode()
	if err != nil {
		s.log.Printf("ws: encode response: %v", err)
		return
	}
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func codeFor(err error) string {
	var reason cooking.Reason
	switch {
	case errors.Is(err, kitchen.ErrNoStation):
		return protocol.ErrStationNotFound
	case errors.Is(err, kitchen.ErrPosTaken):
		return protocol.ErrPosTaken
	case errors.Is(err, kitchen.ErrNotRunning), errors.Is(err, context.DeadlineExceeded):
		return protocol.ErrKitchenBusy
	case errors.As(err, &reason):
		return string(reason)
	default:
		return protocol.ErrInternal
	}
}
