// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package bridgeproto

import (
	"encoding/json"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	params, err := json.Marshal(ExecuteParams{SQL: "select 1", Values: []interface{}{1, "a"}})
	if err != nil {
		t.Fatalf("marshaling params: %v", err)
	}

	req := Request{Command: CmdExecute, Params: params}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}

	var got Request
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshaling request: %v", err)
	}
	if got.Command != CmdExecute {
		t.Fatalf("expected command %q, got %q", CmdExecute, got.Command)
	}

	var gotParams ExecuteParams
	if err := json.Unmarshal(got.Params, &gotParams); err != nil {
		t.Fatalf("unmarshaling nested params: %v", err)
	}
	if gotParams.SQL != "select 1" || len(gotParams.Values) != 2 {
		t.Fatalf("unexpected params: %+v", gotParams)
	}
}

func TestResponseSuccessAndError(t *testing.T) {
	data, _ := json.Marshal(ExecuteData{RowsAffected: 3})
	success := Response{Status: StatusSuccess, Data: data}

	encoded, err := json.Marshal(success)
	if err != nil {
		t.Fatalf("marshaling response: %v", err)
	}
	var got Response
	if err := json.Unmarshal(encoded, &got); err != nil {
		t.Fatalf("unmarshaling response: %v", err)
	}
	if got.Status != StatusSuccess {
		t.Fatalf("expected status %q, got %q", StatusSuccess, got.Status)
	}

	failure := Response{Status: StatusError, Error: "no such table"}
	encoded, err = json.Marshal(failure)
	if err != nil {
		t.Fatalf("marshaling error response: %v", err)
	}
	if err := json.Unmarshal(encoded, &got); err != nil {
		t.Fatalf("unmarshaling error response: %v", err)
	}
	if got.Status != StatusError || got.Error != "no such table" {
		t.Fatalf("unexpected error response: %+v", got)
	}
}

func TestHybridSearchDataRoundTrip(t *testing.T) {
	want := HybridSearchData{Hits: []HybridHit{
		{ID: "h1", ProjectID: "p1", DocumentID: "d1", ChunkIndex: 0, Content: "text", Score: 0.8},
	}}
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshaling: %v", err)
	}
	var got HybridSearchData
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshaling: %v", err)
	}
	if len(got.Hits) != 1 || got.Hits[0].ID != "h1" || got.Hits[0].Score != 0.8 {
		t.Fatalf("unexpected round trip result: %+v", got)
	}
}
