package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktcraft/internal/command"
	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/core"
	"firestige.xyz/pktcraft/internal/packetfile"
	"firestige.xyz/pktcraft/internal/pipeline"
	"firestige.xyz/pktcraft/internal/store"
	"firestige.xyz/pktcraft/internal/transmit"
)

// MockClient implements ClientInterface
type MockClient struct {
	mock.Mock
}

func (m *MockClient) PacketSend(ctx context.Context, document map[string]any, label string) (*command.BuildResult, error) {
	args := m.Called(ctx, document, label)
	res, _ := args.Get(0).(*command.BuildResult)
	return res, args.Error(1)
}

func (m *MockClient) FrameList(ctx context.Context) ([]command.FrameInfo, error) {
	args := m.Called(ctx)
	frames, _ := args.Get(0).([]command.FrameInfo)
	return frames, args.Error(1)
}

func (m *MockClient) FrameDelete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockClient) SequenceSend(ctx context.Context, ids []string) (int, error) {
	args := m.Called(ctx, ids)
	return args.Int(0), args.Error(1)
}

func (m *MockClient) DaemonShutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockClient) DaemonStatus(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	status, _ := args.Get(0).(map[string]interface{})
	return status, args.Error(1)
}

const synDocument = `label: syn-probe
protocol: tcp
ethernet:
  source: "aa:bb:cc:dd:ee:ff"
  destination: "ff:ff:ff:ff:ff:ff"
ipv4:
  source: 192.168.1.1
  destination: 127.0.0.1
  flags: {dont_fragment: true}
tcp:
  source_port: 40000
  destination_port: 80
  flags: {syn: true}
  options: "MSS=1460"
`

func writeDocument(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "packet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func hexRunner(out *bytes.Buffer) *pipeline.Runner {
	return pipeline.NewRunner(pipeline.New(pipeline.Options{}), transmit.NewHexWriter(out))
}

func TestRunBuild(t *testing.T) {
	path := writeDocument(t, synDocument)

	var buf bytes.Buffer
	err := runBuild(&buf, pipeline.New(pipeline.Options{}), path, true, true)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "tcp segment (24 bytes)")
	assert.Contains(t, out, "ipv4 datagram (44 bytes)")
	assert.Contains(t, out, "ethernet frame (58 bytes)")
	assert.Contains(t, out, "checksums: ipv4=ok tcp=ok")
	assert.Contains(t, out, "--- Layer 3 ---")
}

func TestRunBuild_Invalid(t *testing.T) {
	path := writeDocument(t, strings.Replace(synDocument, "destination_port: 80", "destination_port: 70000", 1))

	var buf bytes.Buffer
	err := runBuild(&buf, pipeline.New(pipeline.Options{}), path, false, false)
	var fe *core.FieldParseError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "tcp.destination_port", fe.Field)
	assert.Empty(t, buf.String(), "nothing is printed for a failed build")
}

func TestRunValidate(t *testing.T) {
	var buf bytes.Buffer
	ok := runValidate(&buf, pipeline.New(pipeline.Options{}), writeDocument(t, synDocument))
	assert.True(t, ok)
	assert.Contains(t, buf.String(), `VALID: "syn-probe": tcp, 58 byte frame`)

	buf.Reset()
	ok = runValidate(&buf, pipeline.New(pipeline.Options{}), writeDocument(t, "protocol: gre\n"))
	assert.False(t, ok)
	assert.True(t, strings.HasPrefix(buf.String(), "INVALID:"), buf.String())
}

func TestRunOptions(t *testing.T) {
	var buf bytes.Buffer
	runOptions(&buf, nil)
	assert.Contains(t, buf.String(), "ipv4: ")
	assert.Contains(t, buf.String(), "tcp: ")
	assert.Contains(t, buf.String(), "MSS")

	buf.Reset()
	runOptions(&buf, []string{"ipv4"})
	assert.NotContains(t, buf.String(), "tcp: ")
}

func TestRunSend_SavesFrame(t *testing.T) {
	var out bytes.Buffer
	fs := store.NewMemoryStore()
	_, spec, err := loadSpec(t, synDocument)
	require.NoError(t, err)

	err = runSend(context.Background(), &out, hexRunner(&out), fs, spec, "probe")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "frame 1 (58 bytes)")
	assert.Contains(t, out.String(), "sent 58 byte tcp frame via hex")
	assert.Contains(t, out.String(), "saved as ")

	frames, err := fs.List()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "probe", frames[0].Label)
}

func TestRunRemoteSend(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("PacketSend", mock.Anything, mock.Anything, "probe").
		Return(&command.BuildResult{Protocol: core.ProtocolTCP, FrameLen: 58, Driver: "rawsock", SavedID: "abc"}, nil)

	var buf bytes.Buffer
	err := runRemoteSend(context.Background(), mockClient, &buf, writeDocument(t, synDocument), "probe")

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "sent 58 byte tcp frame via rawsock (daemon)")
	assert.Contains(t, buf.String(), "saved as abc")
	mockClient.AssertExpectations(t)

	doc := mockClient.Calls[0].Arguments.Get(1).(map[string]any)
	assert.Equal(t, "tcp", doc["protocol"])
}

func TestRunRemoteSend_DaemonDown(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("PacketSend", mock.Anything, mock.Anything, "").Return(nil, core.ErrDaemonNotRunning)

	var buf bytes.Buffer
	err := runRemoteSend(context.Background(), mockClient, &buf, writeDocument(t, synDocument), "")

	assert.ErrorIs(t, err, core.ErrDaemonNotRunning)
	mockClient.AssertExpectations(t)
}

func TestRunRemoteFramesList(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("FrameList", mock.Anything).Return([]command.FrameInfo{
		{ID: "id-1", Label: "first", Protocol: core.ProtocolUDP, Bytes: 42, CreatedAt: time.Now()},
	}, nil)

	var buf bytes.Buffer
	require.NoError(t, runRemoteFramesList(context.Background(), mockClient, &buf))
	assert.Contains(t, buf.String(), "id-1")
	assert.Contains(t, buf.String(), "first")
	mockClient.AssertExpectations(t)
}

func TestFramesLocal(t *testing.T) {
	fs := store.NewMemoryStore()
	a, _ := fs.Save(store.SavedFrame{Label: "a", Protocol: core.ProtocolUDP, Frame: bytes.Repeat([]byte{0xaa}, 42)})
	b, _ := fs.Save(store.SavedFrame{Label: "b", Protocol: core.ProtocolTCP, Frame: bytes.Repeat([]byte{0xbb}, 58)})

	var buf bytes.Buffer
	require.NoError(t, runFramesList(&buf, fs))
	assert.Contains(t, buf.String(), a.ID)
	assert.Contains(t, buf.String(), b.ID)

	buf.Reset()
	require.NoError(t, runFrameShow(&buf, fs, a.ID, false))
	assert.Contains(t, buf.String(), "frame (42 bytes)")
	assert.Contains(t, buf.String(), "aa aa aa")

	var out bytes.Buffer
	require.NoError(t, runReplay(context.Background(), &out, hexRunner(&out), fs, []string{b.ID, a.ID}, config.ReplayConfig{}))
	assert.Contains(t, out.String(), "replayed 2 of 2 frame(s) via hex")
	assert.Less(t, strings.Index(out.String(), "(58 bytes)"), strings.Index(out.String(), "(42 bytes)"))

	buf.Reset()
	require.NoError(t, runFrameDelete(&buf, fs, a.ID))
	err := runFrameShow(&buf, fs, a.ID, false)
	assert.True(t, errors.Is(err, core.ErrFrameNotFound))
}

func TestFramesRemoteFlagScope(t *testing.T) {
	assert.Nil(t, framesCmd.PersistentFlags().Lookup("remote"))
	for _, c := range []*cobra.Command{framesListCmd, framesDeleteCmd, framesReplayCmd} {
		assert.NotNil(t, c.Flags().Lookup("remote"), c.Name())
	}

	// Local-only subcommands must refuse --remote instead of acting on disk.
	for _, args := range [][]string{
		{"frames", "clear", "--remote"},
		{"frames", "show", "abc", "--remote"},
		{"frames", "export", "-o", filepath.Join(t.TempDir(), "x.pcap"), "--remote"},
	} {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(args)
		err := rootCmd.Execute()
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "unknown flag: --remote")
	}
	rootCmd.SetArgs(nil)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
}

func TestRunExport(t *testing.T) {
	fs := store.NewMemoryStore()
	fs.Save(store.SavedFrame{Frame: []byte{1, 2, 3}})
	fs.Save(store.SavedFrame{Frame: []byte{4, 5}})

	path := filepath.Join(t.TempDir(), "frames.pcap")
	var buf bytes.Buffer
	require.NoError(t, runExport(context.Background(), &buf, fs, nil, path))
	assert.Contains(t, buf.String(), "wrote 2 frame(s)")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)
	var got [][]byte
	for {
		data, _, err := r.ReadPacketData()
		if err != nil {
			break
		}
		got = append(got, data)
	}
	assert.ElementsMatch(t, [][]byte{{1, 2, 3}, {4, 5}}, got)
}

func TestRunServe(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.GlobalConfig{
		Control:  config.ControlConfig{Socket: filepath.Join(dir, "ctl.sock")},
		Transmit: config.TransmitConfig{Driver: config.DriverPcap, PcapPath: filepath.Join(dir, "out.pcap")},
		Store:    config.StoreConfig{Dir: filepath.Join(dir, "frames")},
		Replay:   config.ReplayConfig{Burst: 1},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- runServe(ctx, cfg, "", filepath.Join(dir, "pktcraft.pid")) }()

	client := command.NewUDSClient(cfg.Control.Socket, 2*time.Second)
	require.Eventually(t, func() bool {
		return client.Ping(context.Background()) == nil
	}, 3*time.Second, 20*time.Millisecond)

	status, err := client.DaemonStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.DriverPcap, status["driver"])

	// daemon_shutdown stops the daemon like a signal would.
	var out bytes.Buffer
	runStop(context.Background(), client, &out)

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestRunStop_DaemonDown(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("DaemonShutdown", mock.Anything).Return(core.ErrDaemonNotRunning)

	var buf bytes.Buffer
	err := runStop(context.Background(), mockClient, &buf)

	assert.ErrorIs(t, err, core.ErrDaemonNotRunning)
	assert.Empty(t, buf.String())
	mockClient.AssertExpectations(t)
}

func loadSpec(t *testing.T, content string) (string, core.FullPacketSpec, error) {
	t.Helper()
	path := writeDocument(t, content)
	_, spec, err := packetfile.LoadSpec(path)
	return path, spec, err
}
