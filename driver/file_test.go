package driver_test

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/fs3io/fs3/cache"
	"github.com/fs3io/fs3/driver"
	"github.com/fs3io/fs3/errors"
	fs3test "github.com/fs3io/fs3/testing"
	"github.com/fs3io/fs3/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile__ReadWriteSeek(t *testing.T) {
	fs, _ := fs3test.NewMountedDriver(t, small, 4)
	file, err := fs.OpenFile("notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", file.Name())

	n, err := file.WriteString("The quick brown fox jumps over the lazy dog")
	require.NoError(t, err)
	assert.Equal(t, 43, n)

	pos, err := file.Seek(-8, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 35, pos)

	tail, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "lazy dog", string(tail))

	pos, err = file.Seek(4, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 4, pos)
	pos, err = file.Seek(6, io.SeekCurrent)
	require.NoError(t, err)
	assert.EqualValues(t, 10, pos)

	word := make([]byte, 5)
	_, err = io.ReadFull(file, word)
	require.NoError(t, err)
	assert.Equal(t, "brown", string(word))

	size, err := file.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 43, size)
}

func TestFile__SeekOutOfRange(t *testing.T) {
	fs, _ := fs3test.NewMountedDriver(t, small, 4)
	file, err := fs.OpenFile("f")
	require.NoError(t, err)
	_, err = file.WriteString("abc")
	require.NoError(t, err)

	_, err = file.Seek(-4, io.SeekEnd)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = file.Seek(1, io.SeekEnd)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = file.Seek(0, 42)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	pos, err := file.Tell()
	require.NoError(t, err)
	assert.EqualValues(t, 3, pos)
}

func TestFile__ReadReturnsEOF(t *testing.T) {
	fs, _ := fs3test.NewMountedDriver(t, small, 4)
	file, err := fs.OpenFile("f")
	require.NoError(t, err)
	_, err = file.WriteString("abc")
	require.NoError(t, err)
	_, err = file.Seek(1, io.SeekStart)
	require.NoError(t, err)

	buffer := make([]byte, 8)
	n, err := file.Read(buffer)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	n, err = file.Read(buffer)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFile__CopyInAndOut(t *testing.T) {
	fs, _ := fs3test.NewMountedDriver(t, small, 3)
	data := fs3test.CreateRandomBuffer(t, 1000)

	file, err := fs.OpenFile("copy")
	require.NoError(t, err)
	copied, err := io.Copy(file, bytes.NewReader(data))
	require.NoError(t, err)
	assert.EqualValues(t, 1000, copied)

	_, err = file.Seek(0, io.SeekStart)
	require.NoError(t, err)

	var out bytes.Buffer
	copied, err = io.Copy(&out, file)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, copied)
	assert.Equal(t, data, out.Bytes())

	require.NoError(t, file.Close())
	assert.ErrorIs(t, file.Close(), errors.ErrInvalidFileDescriptor)
}

// Random writes, seeks, and reads across a few files, with a cache much smaller
// than the working set, must always agree with a plain byte slice per file.
func TestDriver__RandomWorkloadMatchesModel(t *testing.T) {
	fs, _ := fs3test.NewMountedDriver(t, small, 3)
	rng := rand.New(rand.NewSource(2021))

	names := []string{"alpha", "beta", "gamma"}
	model := map[string][]byte{}
	files := map[string]*driver.File{}
	cursor := map[string]int64{}
	for _, name := range names {
		file, err := fs.OpenFile(name)
		require.NoError(t, err)
		files[name] = file
	}

	// Keep the three files well inside the 2048-byte disk.
	const maxFileLength = 600

	for step := 0; step < 1500; step++ {
		name := names[rng.Intn(len(names))]
		file := files[name]
		content := model[name]

		switch rng.Intn(4) {
		case 0:
			length := 1 + rng.Intn(150)
			if cursor[name]+int64(length) > maxFileLength {
				continue
			}
			data := make([]byte, length)
			rng.Read(data)

			n, err := file.Write(data)
			require.NoErrorf(t, err, "step %d: write %d bytes to %s", step, length, name)
			require.Equal(t, length, n)

			end := cursor[name] + int64(length)
			if end > int64(len(content)) {
				content = append(content, make([]byte, end-int64(len(content)))...)
			}
			copy(content[cursor[name]:], data)
			model[name] = content
			cursor[name] = end

		case 1:
			target := rng.Int63n(int64(len(content)) + 1)
			_, err := file.Seek(target, io.SeekStart)
			require.NoError(t, err)
			cursor[name] = target

		case 2:
			buffer := make([]byte, 1+rng.Intn(200))
			n, err := file.Read(buffer)
			if err != nil {
				require.ErrorIs(t, err, io.EOF)
			}
			expected := content[cursor[name]:min(cursor[name]+int64(len(buffer)), int64(len(content)))]
			require.Equalf(t, expected, buffer[:n], "step %d: read from %s at %d", step, name, cursor[name])
			cursor[name] += int64(n)

		case 3:
			require.NoError(t, file.Close())
			reopened, err := fs.OpenFile(name)
			require.NoError(t, err)
			files[name] = reopened
			cursor[name] = 0
		}
	}

	for _, name := range names {
		info, err := fs.Stat(name)
		require.NoError(t, err)
		assert.EqualValues(t, len(model[name]), info.Length, name)
	}
}

func TestDriver__OverNetwork(t *testing.T) {
	ctrl := fs3test.NewMemoryController(t, kiloGeometry, nil)
	address := fs3test.StartServer(t, ctrl)

	client := transport.New(transport.Options{
		Address:        address,
		BytesPerSector: kiloGeometry.BytesPerSector,
		Logger:         fs3test.QuietLogger(),
	})
	sectorCache := cache.New(kiloGeometry.BytesPerSector, fs3test.QuietLogger())
	require.NoError(t, sectorCache.Init(2))
	defer sectorCache.Close()

	options := driver.DefaultOptions()
	options.Geometry = kiloGeometry
	options.Logger = fs3test.QuietLogger()
	fs, err := driver.New(client, sectorCache, options)
	require.NoError(t, err)

	require.NoError(t, fs.Mount())
	assert.True(t, client.Connected())

	handle, err := fs.Open("remote.bin")
	require.NoError(t, err)
	data := fs3test.CreateRandomBuffer(t, 5000)
	_, err = fs.Write(handle, data)
	require.NoError(t, err)

	require.NoError(t, fs.Seek(handle, 0))
	readBack := make([]byte, 5000)
	n, err := fs.Read(handle, readBack)
	require.NoError(t, err)
	assert.Equal(t, 5000, n)
	assert.Equal(t, data, readBack)

	require.NoError(t, fs.Unmount())
	assert.False(t, client.Connected())
}
