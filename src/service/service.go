package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/fluxnet/fluxnet/src/net"
	"github.com/fluxnet/fluxnet/src/node"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// maxBodySize bounds the body of a posted broadcast.
const maxBodySize = 1 << 20

// Service serves the overlay websocket, the administrative API and the
// metrics of a node.
type Service struct {
	sync.Mutex

	bindAddress string
	wsPath      string
	node        *node.Node
	incoming    *net.InboundSet
	auth        *TokenAuthorizer
	router      chi.Router
	server      *http.Server
	logger      *logrus.Entry

	// websocket handlers
	wg sync.WaitGroup
}

type responseData struct {
	Message interface{} `json:"message"`
}

type response struct {
	Status string       `json:"status"`
	Data   responseData `json:"data"`
}

// NewService creates a Service. incoming must be the set the node was created
// with; the websocket handler tracks accepted connections in it.
func NewService(bindAddress string,
	wsPath string,
	n *node.Node,
	incoming *net.InboundSet,
	auth *TokenAuthorizer,
	logger *logrus.Entry,
) *Service {
	service := Service{
		bindAddress: bindAddress,
		wsPath:      wsPath,
		node:        n,
		incoming:    incoming,
		auth:        auth,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering fluxnet API handlers")

	r := chi.NewRouter()
	r.Use(cors)
	r.Use(s.auth.Middleware)

	r.Get(s.wsPath, s.ServeWS)

	r.Route("/flux", func(r chi.Router) {
		r.Get("/connectedpeers", s.resultHandler(func(*http.Request) node.Result {
			return s.node.ConnectedPeers()
		}))
		r.Get("/connectedpeersinfo", s.resultHandler(func(*http.Request) node.Result {
			return s.node.ConnectedPeersInfo()
		}))
		r.Get("/incomingconnections", s.resultHandler(func(*http.Request) node.Result {
			return s.node.IncomingConnections()
		}))

		addPeer := s.resultHandler(func(r *http.Request) node.Result {
			return s.node.AddPeer(r.Context(), param(r, "ip"))
		})
		r.Get("/addpeer", addPeer)
		r.Get("/addpeer/{ip}", addPeer)

		removePeer := s.resultHandler(func(r *http.Request) node.Result {
			return s.node.RemovePeer(r.Context(), param(r, "ip"))
		})
		r.Get("/removepeer", removePeer)
		r.Get("/removepeer/{ip}", removePeer)

		removeIncoming := s.resultHandler(func(r *http.Request) node.Result {
			return s.node.RemoveIncomingPeer(r.Context(), param(r, "ip"))
		})
		r.Get("/removeincomingpeer", removeIncoming)
		r.Get("/removeincomingpeer/{ip}", removeIncoming)

		broadcast := s.resultHandler(func(r *http.Request) node.Result {
			var payload interface{}
			if data := param(r, "data"); data != "" {
				payload = data
			}
			return s.node.BroadcastMessage(r.Context(), payload)
		})
		r.Get("/broadcastmessage", broadcast)
		r.Get("/broadcastmessage/{data}", broadcast)
		r.Post("/broadcastmessage", s.PostBroadcast)
	})

	r.Handle("/metrics", promhttp.Handler())

	s.router = r
}

// Handler returns the HTTP handler of the service.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Serve calls ListenAndServe. This is a blocking call. It returns nil once
// Shutdown was called.
func (s *Service) Serve() error {
	s.Lock()
	s.server = &http.Server{
		Addr:    s.bindAddress,
		Handler: s.router,
	}
	server := s.server
	s.Unlock()

	s.logger.WithField("bind_address", s.bindAddress).Info("Serving fluxnet API")

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes the inbound connections, which the HTTP server does not
// track once upgraded, waits for their handlers and stops the HTTP server.
func (s *Service) Shutdown(ctx context.Context) error {
	s.Lock()
	server := s.server
	s.Unlock()

	s.incoming.CloseAll(net.StatusNormalClosure, "shutdown")
	s.wg.Wait()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// ServeWS upgrades the request to the overlay websocket and serves it until
// it ends.
func (s *Service) ServeWS(w http.ResponseWriter, r *http.Request) {
	s.wg.Add(1)
	defer s.wg.Done()

	conn, err := net.Accept(w, r)
	if err != nil {
		s.logger.WithError(err).WithField("remote", r.RemoteAddr).Debug("Websocket upgrade failed")
		return
	}

	s.incoming.Add(conn)
	defer s.incoming.Remove(conn)
	defer conn.Close(net.StatusNormalClosure, "")

	s.node.HandleInbound(r.Context(), conn)
}

// PostBroadcast broadcasts the JSON body of the request.
func (s *Service) PostBroadcast(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.logger.WithError(err).Debug("Reading broadcast body")
		writeResponse(w, response{
			Status: node.StatusError,
			Data:   responseData{Message: "Unable to read message to broadcast."},
		})
		return
	}

	var payload interface{}
	if len(body) > 0 {
		payload, err = net.DecodePayload(body)
		if err != nil {
			s.logger.WithError(err).Debug("Parsing broadcast body")
			writeResponse(w, response{
				Status: node.StatusError,
				Data:   responseData{Message: "Message to broadcast is not valid JSON."},
			})
			return
		}
	}

	writeResult(w, s.node.BroadcastMessage(r.Context(), payload))
}

func (s *Service) resultHandler(fn func(*http.Request) node.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := fn(r)
		if res.Err != nil {
			s.logger.WithError(res.Err).WithField("path", r.URL.Path).Debug(res.Message)
		}
		writeResult(w, res)
	}
}

func writeResult(w http.ResponseWriter, res node.Result) {
	var msg interface{} = res.Message
	if res.Data != nil {
		msg = res.Data
	}
	writeResponse(w, response{
		Status: res.Status,
		Data:   responseData{Message: msg},
	})
}

func writeResponse(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// param reads a route parameter, falling back to the query string.
func param(r *http.Request, name string) string {
	if v := chi.URLParam(r, name); v != "" {
		return v
	}
	return r.URL.Query().Get(name)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}
