package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/ringsim/internal/config"
	"github.com/nvandessel/ringsim/internal/constants"
	"github.com/nvandessel/ringsim/internal/store"
)

// testApp returns a config pointing at the shipped topology documents and a
// temporary output directory.
func testApp(t *testing.T) *config.RingsimConfig {
	t.Helper()
	app := config.Default()
	repoRoot, err := filepath.Abs(filepath.Join("..", ".."))
	if err != nil {
		t.Fatal(err)
	}
	app.ResolvePaths(repoRoot)
	app.Simulation.OutDir = filepath.Join(t.TempDir(), "results")
	app.Catalog.Path = filepath.Join(t.TempDir(), "runs.db")
	return app
}

func setupTestServer(t *testing.T) (*Server, *store.InMemoryRunStore) {
	t.Helper()
	runs := store.NewInMemoryRunStore()
	server, err := NewServer(&Config{
		Name:    "test-server",
		Version: "v1.0.0",
		Root:    t.TempDir(),
		App:     testApp(t),
		Store:   runs,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server, runs
}

func TestNewServer_OpensCatalog(t *testing.T) {
	app := testApp(t)
	server, err := NewServer(&Config{
		Name:    "test-server",
		Version: "v1.0.0",
		Root:    t.TempDir(),
		App:     app,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if _, ok := server.store.(*store.SQLiteRunStore); !ok {
		t.Errorf("store = %T, want *store.SQLiteRunStore", server.store)
	}
	if _, err := os.Stat(app.Catalog.Path); err != nil {
		t.Errorf("catalog not created: %v", err)
	}
}

func TestNewServer_CreatesAuditLog(t *testing.T) {
	server, _ := setupTestServer(t)

	path := filepath.Join(server.root, constants.UserConfigDir, AuditFile)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("audit log not created: %v", err)
	}
}

func TestClose(t *testing.T) {
	server, err := NewServer(&Config{
		Name:    "test-server",
		Version: "v1.0.0",
		Root:    t.TempDir(),
		App:     testApp(t),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	if err := server.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	// Multiple closes should be safe
	if err := server.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}

func TestClose_LeavesInjectedStoreOpen(t *testing.T) {
	server, runs := setupTestServer(t)
	if err := server.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := runs.StartRun(context.Background(), store.Run{LogPath: "/out/res.csv"}); err != nil {
		t.Errorf("injected store unusable after server Close: %v", err)
	}
}

// clientSession connects an in-memory MCP client to the server.
func clientSession(t *testing.T, s *Server) *sdk.ClientSession {
	t.Helper()
	ctx := context.Background()
	ct, st := sdk.NewInMemoryTransports()

	ss, err := s.server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func TestServer_ListsTools(t *testing.T) {
	server, _ := setupTestServer(t)
	cs := clientSession(t, server)

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	for _, want := range []string{"ringsim_topology", "ringsim_status", "ringsim_runs"} {
		if !slices.Contains(names, want) {
			t.Errorf("tool %s not registered (have %v)", want, names)
		}
	}
}

func TestServer_CallStatusOverTransport(t *testing.T) {
	server, _ := setupTestServer(t)
	cs := clientSession(t, server)

	logPath := filepath.Join(t.TempDir(), constants.ResultLogFile)
	if err := os.WriteFile(logPath, []byte(",max_loading_all\n0,12.5\n1,13\n"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := cs.CallTool(context.Background(), &sdk.CallToolParams{
		Name:      "ringsim_status",
		Arguments: map[string]any{"log_path": logPath},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("ringsim_status returned error: %v", result.Content)
	}

	var out StatusOutput
	raw, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("marshal StructuredContent: %v", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal StatusOutput: %v", err)
	}
	if out.State != "resuming" || out.NextStep != 2 {
		t.Errorf("status = %s next %d, want resuming next 2", out.State, out.NextStep)
	}
}

func TestServer_ToolErrorOverTransport(t *testing.T) {
	server, _ := setupTestServer(t)
	cs := clientSession(t, server)

	result, err := cs.CallTool(context.Background(), &sdk.CallToolParams{
		Name:      "ringsim_runs",
		Arguments: map[string]any{"status": "paused"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Error("ringsim_runs with bad status: IsError = false, want true")
	}
}
