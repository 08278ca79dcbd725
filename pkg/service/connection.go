package service

import (
	"context"

	"github.com/zfogg/circle/cli/pkg/db"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/logger"
	"github.com/zfogg/circle/cli/pkg/models"
)

// ConnectionService manages connections and connection requests
type ConnectionService struct {
	db     *db.Client
	userID string
	feed   *FeedService
}

// NewConnectionService creates a connection service. Accepting or
// removing a connection changes who appears in feed.
func NewConnectionService(client *db.Client, userID string, feed *FeedService) *ConnectionService {
	return &ConnectionService{db: client, userID: userID, feed: feed}
}

// Request asks targetID to connect
func (cs *ConnectionService) Request(ctx context.Context, targetID string) (*models.ConnectionRequest, error) {
	if err := requireUser(cs.userID); err != nil {
		return nil, err
	}
	if targetID == "" {
		return nil, clierrors.ValidationError("user id", "is required")
	}
	if targetID == cs.userID {
		return nil, clierrors.ValidationError("user id", "you cannot connect with yourself")
	}

	connected, err := cs.isConnected(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if connected {
		return nil, clierrors.ValidationError("user id", "you are already connected")
	}

	var pending []models.ConnectionRequest
	err = cs.db.From(models.TableConnectionRequest).
		Select("id").
		Or(pairFilter("sender_id", "receiver_id", cs.userID, targetID)).
		Eq("status", models.RequestPending).
		Limit(1).
		Execute(ctx, &pending)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return nil, clierrors.ValidationError("user id", "a request is already pending")
	}

	var created []models.ConnectionRequest
	err = cs.db.From(models.TableConnectionRequest).
		Insert(models.NewConnectionRequest{
			SenderID:   cs.userID,
			ReceiverID: targetID,
			Status:     models.RequestPending,
		}).
		Execute(ctx, &created)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, clierrors.ServerError()
	}
	logger.Info("Connection requested", "receiver_id", targetID)
	return &created[0], nil
}

// List returns the user's connections with the peer embedded
func (cs *ConnectionService) List(ctx context.Context) ([]models.Connection, error) {
	if err := requireUser(cs.userID); err != nil {
		return nil, err
	}

	var rows []models.Connection
	err := cs.db.From(models.TableConnection).
		Select("*,peer:user!connection_id(*)").
		Eq("user_id", cs.userID).
		Order("created_at", false).
		Execute(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Incoming returns pending requests addressed to the user
func (cs *ConnectionService) Incoming(ctx context.Context) ([]models.ConnectionRequest, error) {
	return cs.requests(ctx, "receiver_id", "*,sender:user!sender_id(*)")
}

// Outgoing returns pending requests the user sent
func (cs *ConnectionService) Outgoing(ctx context.Context) ([]models.ConnectionRequest, error) {
	return cs.requests(ctx, "sender_id", "*,receiver:user!receiver_id(*)")
}

// Accept turns an incoming request into a connection in both directions
func (cs *ConnectionService) Accept(ctx context.Context, requestID string) error {
	req, err := cs.incoming(ctx, requestID)
	if err != nil {
		return err
	}

	err = cs.db.From(models.TableConnection).
		Insert([]models.NewConnection{
			{UserID: cs.userID, ConnectionID: req.SenderID},
			{UserID: req.SenderID, ConnectionID: cs.userID},
		}).
		Execute(ctx, nil)
	if err != nil && !clierrors.IsType(err, clierrors.ErrorTypeConflict) {
		return err
	}

	err = cs.db.From(models.TableConnectionRequest).
		Delete().
		Eq("id", requestID).
		Execute(ctx, nil)
	if err != nil {
		return err
	}

	cs.invalidateFeed()
	logger.Info("Connection accepted", "peer_id", req.SenderID)
	return nil
}

// Decline rejects an incoming request
func (cs *ConnectionService) Decline(ctx context.Context, requestID string) error {
	if _, err := cs.incoming(ctx, requestID); err != nil {
		return err
	}

	return cs.db.From(models.TableConnectionRequest).
		Update(map[string]string{"status": models.RequestDeclined}).
		Eq("id", requestID).
		Eq("receiver_id", cs.userID).
		Execute(ctx, nil)
}

// Remove deletes the connection with peerID in both directions
func (cs *ConnectionService) Remove(ctx context.Context, peerID string) error {
	if err := requireUser(cs.userID); err != nil {
		return err
	}
	if peerID == "" {
		return clierrors.ValidationError("user id", "is required")
	}

	connected, err := cs.isConnected(ctx, peerID)
	if err != nil {
		return err
	}
	if !connected {
		return clierrors.NotFoundError("Connection", peerID)
	}

	err = cs.db.From(models.TableConnection).
		Delete().
		Or(pairFilter("user_id", "connection_id", cs.userID, peerID)).
		Execute(ctx, nil)
	if err != nil {
		return err
	}

	cs.invalidateFeed()
	return nil
}

func (cs *ConnectionService) isConnected(ctx context.Context, peerID string) (bool, error) {
	var rows []models.Connection
	err := cs.db.From(models.TableConnection).
		Select("id").
		Eq("user_id", cs.userID).
		Eq("connection_id", peerID).
		Limit(1).
		Execute(ctx, &rows)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (cs *ConnectionService) requests(ctx context.Context, column, columns string) ([]models.ConnectionRequest, error) {
	if err := requireUser(cs.userID); err != nil {
		return nil, err
	}

	var rows []models.ConnectionRequest
	err := cs.db.From(models.TableConnectionRequest).
		Select(columns).
		Eq(column, cs.userID).
		Eq("status", models.RequestPending).
		Order("created_at", false).
		Execute(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// incoming loads a pending request and checks it is addressed to the user
func (cs *ConnectionService) incoming(ctx context.Context, requestID string) (*models.ConnectionRequest, error) {
	if err := requireUser(cs.userID); err != nil {
		return nil, err
	}
	if requestID == "" {
		return nil, clierrors.ValidationError("request id", "is required")
	}

	var req models.ConnectionRequest
	err := cs.db.From(models.TableConnectionRequest).
		Eq("id", requestID).
		Single().
		Execute(ctx, &req)
	if err != nil {
		if clierrors.IsNotFound(err) {
			return nil, clierrors.NotFoundError("Connection request", requestID)
		}
		return nil, err
	}
	if req.ReceiverID != cs.userID {
		return nil, clierrors.AuthorizationError("This request was not sent to you")
	}
	if req.Status != models.RequestPending {
		return nil, clierrors.ConflictError("This request was already " + req.Status)
	}
	return &req, nil
}

func (cs *ConnectionService) invalidateFeed() {
	if cs.feed != nil {
		cs.feed.Invalidate()
	}
}

// pairFilter matches rows linking a and b in either direction
func pairFilter(colA, colB, a, b string) string {
	a, b = db.QuoteValue(a), db.QuoteValue(b)
	return "and(" + colA + ".eq." + a + "," + colB + ".eq." + b + ")," +
		"and(" + colA + ".eq." + b + "," + colB + ".eq." + a + ")"
}
