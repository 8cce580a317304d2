package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValidOnceBlockTypesAreSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SupportedBlocks = []BlockTypeDescriptor{{BlockType: "1mint"}}
	require.NoError(t, Validate(cfg))
}

func TestValidateRejectsEmptySupportedBlocks(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsDuplicateBlockType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SupportedBlocks = []BlockTypeDescriptor{
		{BlockType: "1mint"},
		{BlockType: "1mint"},
	}
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsSegmentLargerThanMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SupportedBlocks = []BlockTypeDescriptor{{BlockType: "1mint"}}
	cfg.MaxSegmentSizeBytes = cfg.MaxMemorySizeBytes + 1
	require.Error(t, Validate(cfg))
}

func TestSupportsBlockType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SupportedBlocks = []BlockTypeDescriptor{{BlockType: "1xfer"}}
	require.True(t, cfg.SupportsBlockType("1xfer"))
	require.False(t, cfg.SupportsBlockType("1mint"))
}
