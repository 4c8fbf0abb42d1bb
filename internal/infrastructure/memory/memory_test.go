package memory

import (
	"testing"

	"github.com/helixframework/helix/internal/infrastructure/files"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedID(id uint32) func() uint32 {
	return func() uint32 { return id }
}

func TestFileMemory_Filename(t *testing.T) {
	m := NewFileMemory(files.NewMemory(), "/app/runtime/cache", fixedID(42))

	assert.Equal(t, "/app/runtime/cache/config-views-42.json", m.Filename("config/views", ""))
	assert.Equal(t, "/app/runtime/cache/a-b-42.json", m.Filename("a\\b", ""))
	assert.Equal(t, "/app/data/schema.json", m.Filename("schema", "/app/data"))
}

func TestFileMemory_SaveLoad(t *testing.T) {
	m := NewFileMemory(files.NewMemory(), "/cache", fixedID(7))

	require.NoError(t, m.SaveData("config-views", map[string]any{"extension": "tpl", "depth": 3}, ""))

	data, err := m.LoadData("config-views", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"extension": "tpl", "depth": float64(3)}, data)

	var typed struct {
		Extension string `json:"extension"`
		Depth     int    `json:"depth"`
	}
	require.NoError(t, m.LoadInto("config-views", "", &typed))
	assert.Equal(t, 3, typed.Depth)

	_, err = m.LoadData("absent", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileMemory_ScopedByApplicationID(t *testing.T) {
	fm := files.NewMemory()
	id := uint32(1)
	m := NewFileMemory(fm, "/cache", func() uint32 { return id })

	require.NoError(t, m.SaveData("value", "first", ""))
	id = 2
	_, err := m.LoadData("value", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileMemory_CorruptedData(t *testing.T) {
	fm := files.NewMemory()
	m := NewFileMemory(fm, "/cache", fixedID(1))
	require.NoError(t, fm.Write(m.Filename("broken", ""), []byte("{not json"), files.Runtime, true))

	_, err := m.LoadData("broken", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisMemory_Filename(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	m := NewRedisMemoryWithClient(client, "", 0, fixedID(9))
	assert.Equal(t, "helix:memory:9:config-views", m.Filename("config/views", ""))
	assert.Equal(t, "helix:memory:shared:schema", m.Filename("schema", "shared"))
}
