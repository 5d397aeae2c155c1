package rpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"slices"
	"sync"
	"time"

	"soltick/pkg/constants"
	"soltick/pkg/errors"
	"soltick/pkg/ledger"
	"soltick/pkg/state"
	"soltick/pkg/types"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
)

// Server answers RPC requests against a bank. The same handler serves the unix
// socket and every QUIC stream.
type Server struct {
	bank       *ledger.Bank
	programID  types.Pubkey
	maxAirdrop types.Lamports

	wg sync.WaitGroup
}

// NewServer creates a server for the event program registered at programID.
// maxAirdrop caps a single airdrop request; zero disables airdrops.
func NewServer(bank *ledger.Bank, programID types.Pubkey, maxAirdrop types.Lamports) *Server {
	return &Server{
		bank:       bank,
		programID:  programID,
		maxAirdrop: maxAirdrop,
	}
}

// ServeUnix listens on socketPath until ctx is cancelled.
func (s *Server) ServeUnix(ctx context.Context, socketPath string) error {
	// Remove socket if it already exists
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	log.Printf("RPC listening on unix socket %s", socketPath)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()
			s.handleConnection(uuid.NewString(), conn)
		}()
	}
}

// ServeQUIC listens on the UDP address addr until ctx is cancelled. Each stream
// carries its own request/response sequence.
func (s *Server) ServeQUIC(ctx context.Context, addr string, tlsConfig *tls.Config) error {
	listener, err := quic.ListenAddr(addr, tlsConfig, &quic.Config{
		MaxIdleTimeout:  time.Minute,
		KeepAlivePeriod: 15 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.serveQUIC(ctx, listener)
}

func (s *Server) serveQUIC(ctx context.Context, listener *quic.Listener) error {
	defer listener.Close()
	log.Printf("RPC listening on QUIC %s", listener.Addr())

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("failed to accept QUIC connection: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleQUICConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleQUICConnection(ctx context.Context, conn *quic.Conn) {
	connID := uuid.NewString()
	log.Printf("[%s] QUIC connection from %s", connID, conn.RemoteAddr())
	var streams sync.WaitGroup
	defer streams.Wait()
	defer conn.CloseWithError(0, "closing")

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			log.Printf("[%s] connection closed: %v", connID, err)
			return
		}
		streams.Add(1)
		go func() {
			defer streams.Done()
			defer stream.Close()
			s.handleConnection(fmt.Sprintf("%s/%d", connID, stream.StreamID()), stream)
		}()
	}
}

// handleConnection serves requests from rw until the peer disconnects.
func (s *Server) handleConnection(connID string, rw io.ReadWriter) {
	for {
		msgData, err := readFrame(rw)
		if err != nil {
			if err == io.EOF {
				log.Printf("[%s] client disconnected", connID)
				return
			}
			log.Printf("[%s] error receiving message: %v", connID, err)
			return
		}

		resp, err := s.HandleMessageData(msgData)
		if err != nil {
			// Internal failure: report it and drop the connection.
			log.Printf("[%s] error handling message: %v", connID, err)
			resp = ResponseMessage{Error: &ErrorResult{Message: "internal error"}}
			s.sendMessage(rw, resp)
			return
		}

		if err := s.sendMessage(rw, resp); err != nil {
			log.Printf("[%s] error sending response: %v", connID, err)
			return
		}
	}
}

func (s *Server) sendMessage(w io.Writer, msg ResponseMessage) error {
	data, err := EncodeResponse(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// HandleMessageData processes one unframed request. Errors caused by the request
// come back as an Error response; a returned error means the node itself failed.
func (s *Server) HandleMessageData(msgData []byte) (ResponseMessage, error) {
	req, err := DecodeRequest(msgData)
	if err != nil {
		return errorResponse(err)
	}

	var resp ResponseMessage
	switch {
	case req.GetAccount != nil:
		resp, err = s.handleGetAccount(*req.GetAccount)
	case req.SendTransaction != nil:
		resp, err = s.handleSendTransaction(*req.SendTransaction)
	case req.RequestAirdrop != nil:
		resp, err = s.handleAirdrop(*req.RequestAirdrop)
	case req.GetTransaction != nil:
		resp, err = s.handleGetTransaction(*req.GetTransaction)
	case req.GetEvent != nil:
		resp, err = s.handleGetEvent(*req.GetEvent)
	case req.GetRecentHash != nil:
		resp, err = s.handleGetRecentHash()
	case req.ListEvents != nil:
		resp, err = s.handleListEvents(*req.ListEvents)
	}
	if err != nil {
		return errorResponse(err)
	}
	return resp, nil
}

func errorResponse(err error) (ResponseMessage, error) {
	code, ok := errors.CodeOf(err)
	if !ok {
		return ResponseMessage{}, err
	}
	return ResponseMessage{Error: &ErrorResult{Code: code, Message: err.Error()}}, nil
}

func (s *Server) handleGetAccount(req GetAccount) (ResponseMessage, error) {
	rec, found, err := s.bank.GetAccount(req.Pubkey)
	if err != nil {
		return ResponseMessage{}, err
	}
	return ResponseMessage{Account: &AccountResult{Found: found, Record: rec}}, nil
}

func (s *Server) handleSendTransaction(req SendTransaction) (ResponseMessage, error) {
	status, err := s.bank.ProcessTransaction(req.Transaction)
	if err != nil {
		return ResponseMessage{}, err
	}
	return ResponseMessage{Transaction: &TransactionResult{
		Signature: req.Transaction.ID(),
		Found:     true,
		Status:    status,
	}}, nil
}

func (s *Server) handleAirdrop(req RequestAirdrop) (ResponseMessage, error) {
	if req.Lamports == 0 || req.Lamports > s.maxAirdrop {
		return ResponseMessage{}, errors.Errorf(errors.ErrInvalidArgument, "airdrop of %d lamports exceeds limit %d", req.Lamports, s.maxAirdrop)
	}
	balance, err := s.bank.Airdrop(req.Pubkey, req.Lamports)
	if err != nil {
		return ResponseMessage{}, err
	}
	return ResponseMessage{Balance: &BalanceResult{Lamports: balance}}, nil
}

func (s *Server) handleGetTransaction(req GetTransaction) (ResponseMessage, error) {
	status, found, err := s.bank.GetTransaction(req.Signature)
	if err != nil {
		return ResponseMessage{}, err
	}
	return ResponseMessage{Transaction: &TransactionResult{
		Signature: req.Signature,
		Found:     found,
		Status:    status,
	}}, nil
}

func (s *Server) handleGetEvent(req GetEvent) (ResponseMessage, error) {
	rec, found, err := s.bank.GetAccount(req.Pubkey)
	if err != nil {
		return ResponseMessage{}, err
	}
	if !found {
		return ResponseMessage{}, errors.Errorf(errors.ErrInvalidArgument, "account %s not found", req.Pubkey)
	}
	if rec.Owner != s.programID {
		return ResponseMessage{}, errors.Errorf(errors.ErrWrongOwner, "account %s owned by %s", req.Pubkey, rec.Owner)
	}
	event, err := state.DecodeEvent(rec.Data)
	if err != nil {
		return ResponseMessage{}, err
	}
	return ResponseMessage{Event: &EventResult{EventEntry{Pubkey: req.Pubkey, Event: event}}}, nil
}

func (s *Server) handleGetRecentHash() (ResponseMessage, error) {
	hash, slot, err := s.bank.RecentHash()
	if err != nil {
		return ResponseMessage{}, err
	}
	return ResponseMessage{RecentHash: &RecentHashResult{Hash: hash, Slot: slot}}, nil
}

// handleListEvents returns one page of the initialized events owned by the program,
// ordered by key.
func (s *Server) handleListEvents(req ListEvents) (ResponseMessage, error) {
	accounts, err := s.bank.ProgramAccounts(s.programID)
	if err != nil {
		return ResponseMessage{}, err
	}
	result := &EventsResult{Events: []EventEntry{}}
	for key, rec := range accounts {
		event, err := state.DecodeEvent(rec.Data)
		if err != nil || !event.IsInitialized() {
			continue
		}
		result.Events = append(result.Events, EventEntry{Pubkey: key, Event: event})
	}
	slices.SortFunc(result.Events, func(a, b EventEntry) int {
		return bytes.Compare(a.Pubkey[:], b.Pubkey[:])
	})
	if req.After != nil {
		start, _ := slices.BinarySearchFunc(result.Events, *req.After, func(e EventEntry, key types.Pubkey) int {
			return bytes.Compare(e.Pubkey[:], key[:])
		})
		if start < len(result.Events) && result.Events[start].Pubkey == *req.After {
			start++
		}
		result.Events = result.Events[start:]
	}
	limit := int(req.Limit)
	if limit == 0 || limit > constants.MaxEventsPerPage {
		limit = constants.MaxEventsPerPage
	}
	if len(result.Events) > limit {
		result.Events = result.Events[:limit]
		result.More = true
	}
	return ResponseMessage{Events: result}, nil
}
