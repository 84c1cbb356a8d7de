// internal/calib/blocks.go
package calib

import (
	"fmt"

	"github.com/tamzrod/nvstore/internal/layout"
	"github.com/tamzrod/nvstore/internal/record"
	"github.com/tamzrod/nvstore/internal/status"
)

// Block is one calibration constant block.
type Block uint8

const (
	AFE Block = iota
	ADCHigh
	ADCLow
	Injection

	numBlocks
)

// MeterBlocks share the meter calibration page, in this order.
var MeterBlocks = []Block{AFE, ADCHigh, ADCLow}

func (b Block) String() string {
	switch b {
	case AFE:
		return "afe"
	case ADCHigh:
		return "adc-high"
	case ADCLow:
		return "adc-low"
	case Injection:
		return "injection"
	default:
		return fmt.Sprintf("block(%d)", uint8(b))
	}
}

// Payload layouts (float32 words):
//
//	AFE        gains[8] offsets[8] phase[7]
//	ADC        gains[8] offsets[8]
//	Injection  gains[5] offsets[5]
//
// Gain order: Ia Ib Ic In Van Vbn Vcn Ig (injection: Ia Ib Ic In Ig).

type blockInfo struct {
	fram, flash layout.Record
	gains       int
	framFault   status.Flag
	flashFault  status.Flag
}

var blocks = [numBlocks]blockInfo{
	AFE:       {layout.AFECalFRAM, layout.AFECalFlash, 8, status.FlagCalFRAM, status.FlagCalFlash},
	ADCHigh:   {layout.ADCHCalFRAM, layout.ADCHCalFlash, 8, status.FlagCalFRAM, status.FlagCalFlash},
	ADCLow:    {layout.ADCLCalFRAM, layout.ADCLCalFlash, 8, status.FlagCalFRAM, status.FlagCalFlash},
	Injection: {layout.InjCalFRAM, layout.InjCalFlash, 5, status.FlagInjFRAM, status.FlagInjFlash},
}

// Words is the payload length.
func (b Block) Words() int { return blocks[b].fram.Words }

// Default returns the constants used when no stored copy is valid:
// unity gains, zero offsets and phase.
func (b Block) Default() []uint32 {
	w := make([]uint32, b.Words())
	one := record.Float32Words(1)[0]
	for i := 0; i < blocks[b].gains; i++ {
		w[i] = one
	}
	return w
}

func (b Block) valid() bool { return b < numBlocks }
