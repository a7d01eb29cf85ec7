// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// kb-bridge is the long-running child process that hosts the SQLite-backed
// storage engine and speaks the line-delimited JSON protocol described in
// internal/bridgeproto to its parent over stdin/stdout.
//
// Grounded on original_source/src-tauri/src/services/python_subprocess.rs's
// companion Python script contract (read one JSON line from stdin, write
// one JSON line of response to stdout, keep going until stdin closes) and
// seekdb_adapter.rs's schema/hybrid-search logic, adapted from a remote
// engine's native hybrid-search function to an embedded SQLite FTS5 +
// brute-force cosine/L2 approximation (SPEC_FULL.md §4.3.1).
package main

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/northbound/kbengine/internal/bridgeproto"
)

func main() {
	srv := &server{}
	if err := srv.run(os.Stdin, os.Stdout); err != nil && err != io.EOF {
		log.Fatalf("kb-bridge: %v", err)
	}
}

type server struct {
	db *sql.DB
}

func (s *server) run(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	writer := bufio.NewWriter(out)
	defer writer.Flush()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req bridgeproto.Request
		resp := bridgeproto.Response{Status: bridgeproto.StatusError}
		if err := json.Unmarshal(line, &req); err != nil {
			resp.Error = "invalid request"
			resp.Details = err.Error()
		} else {
			data, err := s.dispatch(req)
			if err != nil {
				resp.Error = "command failed"
				resp.Details = err.Error()
			} else {
				resp.Status = bridgeproto.StatusSuccess
				resp.Data = data
			}
		}

		encoded, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		if _, err := writer.Write(append(encoded, '\n')); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *server) dispatch(req bridgeproto.Request) (json.RawMessage, error) {
	switch req.Command {
	case bridgeproto.CmdInit:
		var p bridgeproto.InitParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		return nil, s.handleInit(p)

	case bridgeproto.CmdExecute:
		var p bridgeproto.ExecuteParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		return s.handleExecute(p)

	case bridgeproto.CmdQuery:
		var p bridgeproto.QueryParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		return s.handleQuery(p)

	case bridgeproto.CmdQueryOne:
		var p bridgeproto.QueryParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		return s.handleQueryOne(p)

	case bridgeproto.CmdCommit:
		return nil, nil // autocommit mode; kept as a no-op for protocol parity

	case bridgeproto.CmdRollback:
		return nil, nil

	case bridgeproto.CmdPing:
		if s.db == nil {
			return nil, fmt.Errorf("not initialized")
		}
		return nil, s.db.Ping()

	case bridgeproto.CmdHybrid:
		var p bridgeproto.HybridSearchParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		return s.handleHybridSearch(p)

	case bridgeproto.CmdSimilarity:
		var p bridgeproto.HybridSearchParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		return s.handleSimilaritySearch(p)

	default:
		return nil, fmt.Errorf("unknown command: %s", req.Command)
	}
}
