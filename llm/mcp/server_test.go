/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	alog "github.com/cloudwego/devflow/internal/log"
	"github.com/cloudwego/devflow/internal/workflow"
	"github.com/cloudwego/devflow/internal/workflow/steps"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func sendAndRecv(t *testing.T, request any, stdinWriter *io.PipeWriter, stdout *bufio.Scanner) rpcResponse {
	requestBytes, err := json.Marshal(request)
	if err != nil {
		t.Fatal(err)
	}
	_, err = stdinWriter.Write(append(requestBytes, '\n'))
	if err != nil {
		t.Fatal(err)
	}

	if !stdout.Scan() {
		t.Fatal("failed to read response")
	}
	var response rpcResponse
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return response
}

func callTool(t *testing.T, id int, name string, args map[string]any, w *io.PipeWriter, r *bufio.Scanner) toolResult {
	resp := sendAndRecv(t, map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      name,
			"arguments": args,
		},
	}, w, r)
	require.Nil(t, resp.Error)
	var out toolResult
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	require.Len(t, out.Content, 1)
	return out
}

func TestWorkflowServer(t *testing.T) {
	alog.SetLogLevel(alog.DebugLevel)
	defer alog.SetLogLevel(alog.InfoLevel)
	svr, err := NewServer(ServerOptions{
		ServerName:    "devflow",
		ServerVersion: "1.0.0",
		Verbose:       true,
		MaxSteps:      5,
	})
	require.NoError(t, err)

	stdinReader, stdinWriter := io.Pipe()
	stdoutReader, stdoutWriter := io.Pipe()

	stdioServer := server.NewStdioServer(svr.Server)
	stdioServer.SetErrorLogger(log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrCh := make(chan error, 1)
	go func() {
		err := stdioServer.Listen(ctx, stdinReader, stdoutWriter)
		if err != nil && err != io.EOF && err != context.Canceled {
			serverErrCh <- err
		}
		stdoutWriter.Close()
		close(serverErrCh)
	}()

	time.Sleep(100 * time.Millisecond)

	stdout := bufio.NewScanner(stdoutReader)
	stdout.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	initRequest := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": "2024-11-05",
			"clientInfo": map[string]any{
				"name":    "test-client",
				"version": "1.0.0",
			},
		},
	}
	resp := sendAndRecv(t, initRequest, stdinWriter, stdout)
	require.Nil(t, resp.Error)
	assert.Contains(t, string(resp.Result), "devflow")

	t.Run("describe", func(t *testing.T) {
		out := callTool(t, 2, ToolDescribeWorkflow, map[string]any{}, stdinWriter, stdout)
		require.False(t, out.IsError, out.Content[0].Text)
		var desc DescribeWorkflowResp
		require.NoError(t, json.Unmarshal([]byte(out.Content[0].Text), &desc))
		assert.Equal(t, "collect_requirements", desc.EntryStep)
		assert.Len(t, desc.Routes, 20)
	})

	t.Run("run", func(t *testing.T) {
		out := callTool(t, 3, ToolRunWorkflow, map[string]any{
			"brief":   "a bookmark manager",
			"dry_run": true,
		}, stdinWriter, stdout)
		require.False(t, out.IsError, out.Content[0].Text)
		var run RunWorkflowResp
		require.NoError(t, json.Unmarshal([]byte(out.Content[0].Text), &run))
		assert.Empty(t, run.Error)
		assert.Equal(t, workflow.HaltBudget, run.Result.Halt)
		assert.Equal(t, 5, run.Result.Steps)
		assert.Equal(t, workflow.GenerateCode, run.State.CurrentStep)
		assert.Equal(t, "a bookmark manager", run.State.UserInputs[steps.BriefKey])
		assert.Len(t, run.State.History, 5)
	})

	t.Run("run rejects unknown entry", func(t *testing.T) {
		out := callTool(t, 4, ToolRunWorkflow, map[string]any{
			"brief":      "x",
			"entry_step": "lunch",
		}, stdinWriter, stdout)
		assert.True(t, out.IsError)
		assert.Contains(t, out.Content[0].Text, "lunch")
	})

	t.Run("prompt", func(t *testing.T) {
		resp := sendAndRecv(t, map[string]any{
			"jsonrpc": "2.0",
			"id":      5,
			"method":  "prompts/get",
			"params": map[string]any{
				"name":      PromptStepSystem,
				"arguments": map[string]string{"step": "product_owner_review"},
			},
		}, stdinWriter, stdout)
		require.Nil(t, resp.Error)
		assert.Contains(t, string(resp.Result), "INVEST")
	})

	cancel()
	stdinWriter.Close()

	if err := <-serverErrCh; err != nil {
		t.Errorf("unexpected server error: %v", err)
	}
}

func TestRunWorkflow_StopAfter(t *testing.T) {
	svr, err := NewServer(ServerOptions{ServerName: "devflow", ServerVersion: "test"})
	require.NoError(t, err)

	resp, err := svr.RunWorkflow(context.Background(), RunWorkflowReq{
		Brief:     "a chat app",
		StopAfter: "deployment",
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.HaltTerminal, resp.Result.Halt)
	assert.Equal(t, 12, resp.Result.Steps)
	assert.Equal(t, workflow.End, resp.State.CurrentStep)
}

func TestNewServer_BadCondition(t *testing.T) {
	_, err := NewServer(ServerOptions{Workflow: steps.Options{
		Conditions: map[string]string{"code_review": "approved &&"},
	}})
	assert.Error(t, err)
}

func TestServer_ConfiguredEntryStep(t *testing.T) {
	svr, err := NewServer(ServerOptions{ServerName: "devflow", ServerVersion: "test", EntryStep: workflow.Deployment})
	require.NoError(t, err)

	desc, err := svr.DescribeWorkflow(context.Background(), DescribeWorkflowReq{})
	require.NoError(t, err)
	assert.Equal(t, "deployment", desc.EntryStep)

	resp, err := svr.RunWorkflow(context.Background(), RunWorkflowReq{Brief: "a chat app", MaxSteps: 1})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)
	assert.Equal(t, []workflow.StepID{workflow.Deployment}, resp.Result.Visited)
	assert.Equal(t, workflow.Monitoring, resp.State.CurrentStep)

	_, err = NewServer(ServerOptions{EntryStep: "lunch"})
	assert.Error(t, err)
}
