package api

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/saschahuberzh/SeoulChat/internal/server"
)

func (s *SeoulChatApp) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients send no origin
		return true
	}

	return slices.Contains(s.allowedOrigins, origin)
}

// serveWs authenticates the handshake like any other request and upgrades
// it. Cookies of a rotation are sent with the 101 response.
func (s *SeoulChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		s.writeError(w, NewForbiddenError())
		return
	}

	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	pair := sess.Rotated
	if sess.Refresh != nil {
		if p, err := sess.Refresh.Wait(r.Context()); err == nil {
			pair = &p
		}
	}

	header := http.Header{}
	if pair != nil {
		for _, c := range s.tokenCookies(*pair) {
			header.Add("Set-Cookie", c.String())
		}
	}

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		s.log.Warn().Err(err).Msg("error upgrading connection")
		return
	}

	client := server.NewClient(sess.UserId, conn, s.cs, s.log)
	if err := s.cs.Connect(r.Context(), client); err != nil {
		s.log.Error().Err(err).Str("user_id", sess.UserId).Msg("failed to connect client")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "unable to join"))
		conn.Close()
		return
	}

	go client.Write()
	go client.Read()
}
