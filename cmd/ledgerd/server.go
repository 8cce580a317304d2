package main

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BitySA/dfinity-rust-libraries/ledger"
	"github.com/BitySA/dfinity-rust-libraries/txkinds"
)

// txRequest is the wire shape host callers submit; Kind selects which
// txkinds.* implementation backs the interface for this call.
type txRequest struct {
	Kind   string `json:"kind"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
	Memo   string `json:"memo"`
}

func (r txRequest) toTransaction() (ledger.Transaction, error) {
	switch r.Kind {
	case "mint":
		return txkinds.Mint{To: r.To, Amount: r.Amount, Memo: r.Memo}, nil
	case "transfer":
		return txkinds.Transfer{From: r.From, To: r.To, Amount: r.Amount, Memo: r.Memo}, nil
	case "burn":
		return txkinds.Burn{From: r.From, Amount: r.Amount, Memo: r.Memo}, nil
	default:
		return nil, errUnknownKind
	}
}

var errUnknownKind = jsonError("unknown transaction kind")

type jsonError string

func (e jsonError) Error() string { return string(e) }

func newServer(engine *ledger.Engine, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/icrc3_add_transaction", func(w http.ResponseWriter, r *http.Request) {
		var req txRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		tx, err := req.toTransaction()
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		id, err := engine.AddTransaction(tx)
		if err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, map[string]uint64{"id": id})
	})

	mux.HandleFunc("/icrc3_prepare_transaction", func(w http.ResponseWriter, r *http.Request) {
		var req txRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		tx, err := req.toTransaction()
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		prepared, err := engine.PrepareTransaction(tx)
		if err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, map[string]any{
			"content_hash": hex.EncodeToString(prepared.ContentHash[:]),
			"prepared_at":  prepared.PreparedAt,
		})
	})

	mux.HandleFunc("/icrc3_commit_prepared_transaction", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			txRequest
			PreparedAt uint64 `json:"prepared_at"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		tx, err := body.txRequest.toTransaction()
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		id, err := engine.CommitPreparedTransaction(tx, body.PreparedAt)
		if err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, map[string]uint64{"id": id})
	})

	mux.HandleFunc("/icrc3_get_blocks", func(w http.ResponseWriter, r *http.Request) {
		var reqs []ledger.Range
		if !decodeJSON(w, r, &reqs) {
			return
		}
		res := engine.GetBlocks(reqs)
		writeJSON(w, map[string]any{
			"log_length":      res.LogLength,
			"local_count":     len(res.Blocks),
			"archived_shards": len(res.ArchivedBlocks),
		})
	})

	mux.HandleFunc("/icrc3_get_archives", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, engine.GetArchives())
	})

	mux.HandleFunc("/archive_status", func(w http.ResponseWriter, r *http.Request) {
		status, ok := engine.ArchiveStatus()
		if !ok {
			writeJSON(w, map[string]any{"archiving_enabled": false})
			return
		}
		resp := map[string]any{
			"archiving_enabled": true,
			"active_shard":      string(status.ActiveShard),
			"retry_count":       status.RetryCount,
			"halted":            status.Halted,
		}
		if status.LastFailure != nil {
			resp["last_failure"] = status.LastFailure.Error()
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/icrc3_get_properties", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, engine.GetProperties())
	})

	mux.HandleFunc("/icrc3_get_tip_certificate", func(w http.ResponseWriter, r *http.Request) {
		cert := engine.GetTipCertificate()
		writeJSON(w, map[string]string{
			"certificate": hex.EncodeToString(cert.Certificate),
			"hash_tree":   hex.EncodeToString(cert.HashTree),
		})
	})

	mux.HandleFunc("/icrc3_supported_block_types", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, engine.SupportedBlockTypes())
	})

	mux.HandleFunc("/prepared_transactions_count", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]uint64{"count": engine.PreparedTransactionsCount()})
	})

	mux.HandleFunc("/cleanup_expired_prepared_transactions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]uint64{"removed": engine.CleanupExpiredPreparedTransactions()})
	})

	return mux
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, jsonError("empty body"))
		return false
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
