package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"hash"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProgramAddress(t *testing.T) {
	exceededSeed := make([]byte, maxSeedLength+1)
	maxSeed := make([]byte, maxSeedLength)

	// "SeedPubey" is spelled as in the upstream test vectors.
	publicKey, err := base58.Decode("SeedPubey1111111111111111111111111111111111")
	require.NoError(t, err)
	programID, err := base58.Decode("BPFLoader1111111111111111111111111111111111")
	require.NoError(t, err)

	_, err = CreateProgramAddress(programID, exceededSeed)
	assert.Equal(t, ErrMaxSeedLengthExceeded, err)
	_, err = CreateProgramAddress(programID, []byte("short seed"), exceededSeed)
	assert.Equal(t, ErrMaxSeedLengthExceeded, err)
	_, err = CreateProgramAddress(programID, make([][]byte, maxSeeds+1)...)
	assert.Equal(t, ErrTooManySeeds, err)

	_, err = CreateProgramAddress(programID, maxSeed)
	assert.NoError(t, err)

	cases := []struct {
		expected string
		input    [][]byte
	}{
		{
			expected: "3gF2KMe9KiC6FNVBmfg9i267aMPvK37FewCip4eGBFcT",
			input:    [][]byte{{}, {1}},
		},
		{
			expected: "7ytmC1nT1xY4RfxCV2ZgyA7UakC93do5ZdyhdF3EtPj7",
			input:    [][]byte{[]byte("☉")},
		},
		{
			expected: "HwRVBufQ4haG5XSgpspwKtNd3PC9GM9m1196uJW36vds",
			input:    [][]byte{[]byte("Talking"), []byte("Squirrels")},
		},
		{
			expected: "GUs5qLUfsEHkcMB9T38vjr18ypEhRuNWiePW2LoK4E3K",
			input:    [][]byte{publicKey},
		},
	}

	for _, tc := range cases {
		key, err := CreateProgramAddress(programID, tc.input...)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, base58.Encode(key))
	}

	a, err := CreateProgramAddress(programID, []byte("Talking"))
	require.NoError(t, err)
	b, err := CreateProgramAddress(programID, []byte("Talking"), []byte("Squirrels"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

type fixedHash struct {
	sum []byte
}

func (f *fixedHash) Write(p []byte) (int, error) { return len(p), nil }
func (f *fixedHash) Sum([]byte) []byte           { return f.sum }
func (f *fixedHash) Reset()                      {}
func (f *fixedHash) Size() int                   { return sha256.Size }
func (f *fixedHash) BlockSize() int              { return sha256.BlockSize }

func TestCreateProgramAddress_OnCurve(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	programHashCtor = func() hash.Hash {
		return &fixedHash{sum: pub}
	}
	defer func() {
		programHashCtor = sha256.New
	}()

	programID, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = CreateProgramAddress(programID, []byte("Lil'"), []byte("Bits"))
	assert.Equal(t, ErrInvalidProgramAddress, err)

	_, _, err = FindProgramAddressAndBump(programID, []byte("Lil'"))
	assert.Equal(t, ErrNoViableBumpSeed, err)
}

func TestFindProgramAddress(t *testing.T) {
	for i := 0; i < 100; i++ {
		programID, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		address, bump, err := FindProgramAddressAndBump(programID, []byte("Lil'"), []byte("Bits"))
		require.NoError(t, err)

		derived, err := CreateProgramAddress(programID, []byte("Lil'"), []byte("Bits"), []byte{bump})
		require.NoError(t, err)
		assert.Equal(t, address, derived)
	}
}

func TestFindProgramAddress_Reference(t *testing.T) {
	references := []struct {
		programID string
		expected  string
	}{
		{"4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM", "Bn9pAWUXWc5Kd849xTkQcHqiCbHUEizLFn4r5Cf8XYnd"},
		{"8opHzTAnfzRpPEx21XtnrVTX28YQuCpAjcn1PczScKh", "oDvUHiiGdMo31xYzjefAzUekWH8EbCKrxgs2FkyTs1S"},
		{"CiDwVBFgWV9E5MvXWoLgnEgn2hK7rJikbvfWavzAQz3", "B2vBn2bmF9GuaGkebrm8oUqDC34pE6m4bagjNcVE6msv"},
		{"GcdayuLaLyrdmUu324nahyv33G5poQdLUEZ1nEytDeP", "2mN5Nfq9v1EwTV9FPTHPESZ3XiZce9wi5PQoULFuxvev"},
		{"LX3EUdRUBUa3TbsYXLEUdj9J3prXkWXvLYSWyYyc2Jj", "9CqF6oTZtW5zSeoLnZRoQmj3s2tXGPqifM1W8Z8LVE1z"},
		{"QRSsyMWN1yHT9ir42bgNZUNZ4PdEhcSWCrL2AryKpy5", "FwBDYafabYZLDC8FwaDCsLxWkKnaQxKuQv3afDAGiXJ8"},
		{"UKrXU5bFrTzrqqpZXs8GVDbp4xPweiM65ADXNAy3ddR", "2Y1miPDc3BkHVdNFeFTtRkiw8nbptrBqboJkbqxk5SFt"},
		{"YEGAxog9gxiGXxo538aAQxq55XAebpFfwU72ZUxmSHm", "5jeaj2d8T2hjU63h2chjtSnuUmjti6qZK7oi6jwTspoo"},
	}

	for _, r := range references {
		programID, err := base58.Decode(r.programID)
		require.NoError(t, err)
		expected, err := base58.Decode(r.expected)
		require.NoError(t, err)

		actual, err := FindProgramAddress(programID, []byte("Lil'"), []byte("Bits"))
		require.NoError(t, err)
		assert.EqualValues(t, expected, actual)
	}
}
