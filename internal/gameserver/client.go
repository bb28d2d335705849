package gameserver

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls a remote game service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a Client for target. Extra options are appended to the
// defaults (plaintext transport, JSON content-subtype).
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
	conn, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, req any) (*Response, error) {
	resp := new(Response)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) CreateGame(ctx context.Context) (*Response, error) {
	return c.call(ctx, "CreateGame", &GameRequest{})
}

func (c *Client) JoinGame(ctx context.Context, req *JoinGameRequest) (*Response, error) {
	return c.call(ctx, "JoinGame", req)
}

func (c *Client) MarkReady(ctx context.Context, gameID, playerID string) (*Response, error) {
	return c.call(ctx, "MarkReady", &PlayerRequest{GameID: gameID, PlayerID: playerID})
}

func (c *Client) StartGame(ctx context.Context, gameID, playerID string) (*Response, error) {
	return c.call(ctx, "StartGame", &PlayerRequest{GameID: gameID, PlayerID: playerID})
}

func (c *Client) Move(ctx context.Context, req *CommandRequest) (*Response, error) {
	return c.call(ctx, "Move", req)
}

func (c *Client) PlaceTile(ctx context.Context, req *CommandRequest) (*Response, error) {
	return c.call(ctx, "PlaceTile", req)
}

func (c *Client) RotateTile(ctx context.Context, req *CommandRequest) (*Response, error) {
	return c.call(ctx, "RotateTile", req)
}

func (c *Client) PickItem(ctx context.Context, req *CommandRequest) (*Response, error) {
	return c.call(ctx, "PickItem", req)
}

func (c *Client) LeaveItem(ctx context.Context, req *CommandRequest) (*Response, error) {
	return c.call(ctx, "LeaveItem", req)
}

func (c *Client) FightFinalize(ctx context.Context, req *CommandRequest) (*Response, error) {
	return c.call(ctx, "FightFinalize", req)
}

func (c *Client) UseSpell(ctx context.Context, req *CommandRequest) (*Response, error) {
	return c.call(ctx, "UseSpell", req)
}

func (c *Client) EndTurn(ctx context.Context, req *CommandRequest) (*Response, error) {
	return c.call(ctx, "EndTurn", req)
}

func (c *Client) LeaveGame(ctx context.Context, gameID, playerID string) (*Response, error) {
	return c.call(ctx, "LeaveGame", &PlayerRequest{GameID: gameID, PlayerID: playerID})
}

func (c *Client) GetState(ctx context.Context, gameID string) (*Response, error) {
	return c.call(ctx, "GetState", &GameRequest{GameID: gameID})
}
