package server

import (
	"encoding/json"
	"net/http"

	"skirace/config"
	"skirace/protocol"
)

// HandleAdminConfig 默认调参的读取与更新；只影响之后创建的对局
// GET /admin/config   返回当前调参与模式表
// POST /admin/config  以 JSON 载荷覆盖部分字段
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"tuning":       s.reg.Tuning(),
			"modes":        config.Modes(),
			"worldVersion": config.WorldVersion,
		})
	case http.MethodPost:
		// 在当前值之上解码，未出现的字段保持不变
		t := s.reg.Tuning()
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&t); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if t.TickRate <= 0 || t.MaxPlayers <= 0 || t.InputBufferSize <= 0 || t.ChunkSize <= 0 {
			http.Error(w, "tickRate, maxPlayers, inputBufferSize and chunkSize must be positive", http.StatusBadRequest)
			return
		}
		s.reg.SetTuning(t)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "tuning": t})
		s.log.Infof("config updated: tickRate=%d broadcastRate=%d maxPlayers=%d trustClientDt=%v",
			t.TickRate, t.BroadcastRate, t.MaxPlayers, t.TrustClientDt)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type matchInfo struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Mode      string `json:"mode"`
	Status    string `json:"status"`
	Seed      uint32 `json:"seed"`
	Players   int    `json:"players"`
	StartsAt  int64  `json:"startsAt,omitempty"`
	TickRate  int    `json:"tickRate"`
	Listeners int    `json:"listeners"`
}

// HandleAdminMatches 列出当前所有对局
func (s *Server) HandleAdminMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	list := s.reg.List()
	out := make([]matchInfo, 0, len(list))
	for _, m := range list {
		info := matchInfo{
			ID:       m.ID,
			Code:     m.Code,
			Mode:     m.Mode.Name,
			Status:   m.Status().String(),
			Seed:     m.Seed,
			Players:  m.Connected(),
			TickRate: m.Tuning().TickRate,
		}
		if at := m.StartsAt(); !at.IsZero() {
			info.StartsAt = at.UnixMilli()
		}
		s.mu.Lock()
		if h, ok := s.hubs[m.ID]; ok {
			info.Listeners = h.Len()
		}
		s.mu.Unlock()
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": out})
}

// HandleMetrics 输出指定对局的运行指标；不带参数时输出全部
// GET /metrics?match=<id>
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("match"); id != "" {
		m := s.reg.Get(id)
		if m == nil {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"match":   m.ID,
			"status":  m.Status().String(),
			"metrics": m.Metrics().Snapshot(),
		})
		return
	}
	all := make(map[string]any)
	for _, m := range s.reg.List() {
		all[m.ID] = m.Metrics().Snapshot()
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": all})
}

// HandleSchema 发布客户端消息的 JSON Schema
func (s *Server) HandleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.Schema())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
