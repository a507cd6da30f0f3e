package signal

import "github.com/dkeye/Incommunicado/internal/core"

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: core.TypePong,
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) replyError(conn *WsSignalConn, msg string) {
	ctl.sendJSON(conn, core.ErrorReply{Type: core.TypeError, Error: msg})
}
