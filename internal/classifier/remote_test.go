package classifier

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func startRemote(t *testing.T, impl Classifier) *Remote {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterServer(server, impl)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewRemote(conn)
}

func TestRemoteClassify(t *testing.T) {
	m, err := NewModel(ModelFile{
		Name:       "remote",
		Categories: []int{1, 3},
		Weights:    [][]float64{{5, 0}, {0, 5}},
		Bias:       []float64{0, 0},
	})
	require.NoError(t, err)
	remote := startRemote(t, NewLocalFromModel(m))

	res, err := remote.Classify(context.Background(), []float64{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Category)
	assert.Len(t, res.Probabilities, 2)

	_, err = remote.Classify(context.Background(), []float64{1})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestRemoteUnavailableModel(t *testing.T) {
	remote := startRemote(t, &Local{})

	_, err := remote.Classify(context.Background(), []float64{1, 0})
	assert.ErrorIs(t, err, ErrUnavailable)
}
