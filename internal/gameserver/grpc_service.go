package gameserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
	"github.com/cory-johannsen/tiledungeon/internal/game/field"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tiledungeon.v1.GameService"

// GameRequest names a game.
type GameRequest struct {
	GameID string `json:"game_id"`
}

// JoinGameRequest takes a seat in a lobby.
type JoinGameRequest struct {
	GameID     string `json:"game_id"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id,omitempty"`
	Wallet     string `json:"wallet,omitempty"`
	Automated  bool   `json:"automated,omitempty"`
}

// PlayerRequest is a lobby or leave request by a seated player.
type PlayerRequest struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}

// CommandRequest carries an in-play command. The RPC method selects the
// command kind; fields the kind does not use are ignored.
type CommandRequest struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
	// TurnID is the idempotency key and must name the current turn.
	TurnID        int64          `json:"turn_id"`
	Pos           field.Position `json:"pos"`
	Openings      field.Sides    `json:"openings,omitempty"`
	ItemID        string         `json:"item_id,omitempty"`
	ReplaceItemID string         `json:"replace_item_id,omitempty"`
	BattleID      string         `json:"battle_id,omitempty"`
	Selected      []string       `json:"selected,omitempty"`
	Pickup        bool           `json:"pickup,omitempty"`
}

func (r *CommandRequest) command(kind engine.CommandKind) engine.Command {
	return engine.Command{
		Kind:          kind,
		PlayerID:      r.PlayerID,
		TurnID:        r.TurnID,
		Pos:           r.Pos,
		Openings:      r.Openings,
		ItemID:        r.ItemID,
		ReplaceItemID: r.ReplaceItemID,
		BattleID:      r.BattleID,
		Selected:      r.Selected,
		Pickup:        r.Pickup,
	}
}

// GameServiceServer is the server API of the game service.
type GameServiceServer interface {
	CreateGame(context.Context, *GameRequest) (*Response, error)
	JoinGame(context.Context, *JoinGameRequest) (*Response, error)
	MarkReady(context.Context, *PlayerRequest) (*Response, error)
	StartGame(context.Context, *PlayerRequest) (*Response, error)
	Move(context.Context, *CommandRequest) (*Response, error)
	PlaceTile(context.Context, *CommandRequest) (*Response, error)
	RotateTile(context.Context, *CommandRequest) (*Response, error)
	PickItem(context.Context, *CommandRequest) (*Response, error)
	LeaveItem(context.Context, *CommandRequest) (*Response, error)
	FightFinalize(context.Context, *CommandRequest) (*Response, error)
	UseSpell(context.Context, *CommandRequest) (*Response, error)
	EndTurn(context.Context, *CommandRequest) (*Response, error)
	LeaveGame(context.Context, *PlayerRequest) (*Response, error)
	GetState(context.Context, *GameRequest) (*Response, error)
}

// ServiceDesc describes the game service to grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GameServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateGame", GameServiceServer.CreateGame),
		unary("JoinGame", GameServiceServer.JoinGame),
		unary("MarkReady", GameServiceServer.MarkReady),
		unary("StartGame", GameServiceServer.StartGame),
		unary("Move", GameServiceServer.Move),
		unary("PlaceTile", GameServiceServer.PlaceTile),
		unary("RotateTile", GameServiceServer.RotateTile),
		unary("PickItem", GameServiceServer.PickItem),
		unary("LeaveItem", GameServiceServer.LeaveItem),
		unary("FightFinalize", GameServiceServer.FightFinalize),
		unary("UseSpell", GameServiceServer.UseSpell),
		unary("EndTurn", GameServiceServer.EndTurn),
		unary("LeaveGame", GameServiceServer.LeaveGame),
		unary("GetState", GameServiceServer.GetState),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tiledungeon/v1/game",
}

func unary[Req any](name string, call func(GameServiceServer, context.Context, *Req) (*Response, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(GameServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// GRPCServer adapts a Service to GameServiceServer.
type GRPCServer struct {
	svc    *Service
	logger *zap.Logger
}

// NewGRPCServer creates a GRPCServer.
//
// Precondition: svc and logger must be non-nil.
func NewGRPCServer(svc *Service, logger *zap.Logger) *GRPCServer {
	return &GRPCServer{svc: svc, logger: logger}
}

// Register attaches the game service to gs.
func (s *GRPCServer) Register(gs *grpc.Server) {
	gs.RegisterService(&ServiceDesc, s)
}

func (s *GRPCServer) CreateGame(ctx context.Context, _ *GameRequest) (*Response, error) {
	return s.reply(s.svc.CreateGame(ctx))
}

func (s *GRPCServer) JoinGame(ctx context.Context, req *JoinGameRequest) (*Response, error) {
	return s.reply(s.svc.JoinGame(ctx, req.GameID, engine.JoinRequest{
		Name:       req.Name,
		ExternalID: req.ExternalID,
		Wallet:     req.Wallet,
		Automated:  req.Automated,
	}))
}

func (s *GRPCServer) MarkReady(ctx context.Context, req *PlayerRequest) (*Response, error) {
	return s.reply(s.svc.MarkReady(ctx, req.GameID, req.PlayerID))
}

func (s *GRPCServer) StartGame(ctx context.Context, req *PlayerRequest) (*Response, error) {
	return s.reply(s.svc.StartGame(ctx, req.GameID, req.PlayerID))
}

func (s *GRPCServer) Move(ctx context.Context, req *CommandRequest) (*Response, error) {
	return s.command(ctx, req, engine.CmdMove)
}

func (s *GRPCServer) PlaceTile(ctx context.Context, req *CommandRequest) (*Response, error) {
	return s.command(ctx, req, engine.CmdPlaceTile)
}

func (s *GRPCServer) RotateTile(ctx context.Context, req *CommandRequest) (*Response, error) {
	return s.command(ctx, req, engine.CmdRotateTile)
}

func (s *GRPCServer) PickItem(ctx context.Context, req *CommandRequest) (*Response, error) {
	return s.command(ctx, req, engine.CmdPickItem)
}

func (s *GRPCServer) LeaveItem(ctx context.Context, req *CommandRequest) (*Response, error) {
	return s.command(ctx, req, engine.CmdLeaveItem)
}

func (s *GRPCServer) FightFinalize(ctx context.Context, req *CommandRequest) (*Response, error) {
	return s.command(ctx, req, engine.CmdFightFinalize)
}

func (s *GRPCServer) UseSpell(ctx context.Context, req *CommandRequest) (*Response, error) {
	return s.command(ctx, req, engine.CmdUseSpell)
}

func (s *GRPCServer) EndTurn(ctx context.Context, req *CommandRequest) (*Response, error) {
	return s.command(ctx, req, engine.CmdEndTurn)
}

func (s *GRPCServer) LeaveGame(ctx context.Context, req *PlayerRequest) (*Response, error) {
	return s.reply(s.svc.LeaveGame(ctx, req.GameID, req.PlayerID))
}

func (s *GRPCServer) GetState(ctx context.Context, req *GameRequest) (*Response, error) {
	snap, err := s.svc.GetState(ctx, req.GameID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &Response{Snapshot: snap}, nil
}

func (s *GRPCServer) command(ctx context.Context, req *CommandRequest, kind engine.CommandKind) (*Response, error) {
	return s.reply(s.svc.Command(ctx, req.GameID, req.command(kind)))
}

func (s *GRPCServer) reply(resp *Response, err error) (*Response, error) {
	if err != nil {
		return nil, s.toStatus(err)
	}
	return resp, nil
}

// toStatus maps service errors onto gRPC codes. Domain rejections never reach
// here; they travel in Response.Rejection.
func (s *GRPCServer) toStatus(err error) error {
	switch {
	case errors.Is(err, ErrBusy):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrGameNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error("internal error", zap.Error(err))
	return status.Error(codes.Internal, err.Error())
}
