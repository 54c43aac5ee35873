package ethereum

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/core/vm"
)

// assembler emits EVM bytecode with forward references to labels. Jump
// targets are always encoded on two bytes.
type assembler struct {
	code   []byte
	labels map[string]int
	refs   map[int]string
}

func newAssembler() *assembler {
	return &assembler{
		labels: make(map[string]int),
		refs:   make(map[int]string),
	}
}

func (a *assembler) op(ops ...vm.OpCode) *assembler {
	for _, op := range ops {
		a.code = append(a.code, byte(op))
	}
	return a
}

// push emits PUSHn followed by the n bytes of data, n being at most 32.
func (a *assembler) push(data []byte) *assembler {
	if len(data) == 0 || len(data) > 32 {
		panic(fmt.Sprintf("cannot push %d bytes", len(data)))
	}
	a.code = append(a.code, byte(vm.PUSH1)+byte(len(data)-1))
	a.code = append(a.code, data...)
	return a
}

func (a *assembler) pushByte(b byte) *assembler {
	return a.push([]byte{b})
}

func (a *assembler) pushUint32(n uint32) *assembler {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, n)
	return a.push(buf)
}

// pushLabel pushes the position of a label, resolved by assemble.
func (a *assembler) pushLabel(name string) *assembler {
	a.code = append(a.code, byte(vm.PUSH2))
	a.refs[len(a.code)] = name
	a.code = append(a.code, 0, 0)
	return a
}

func (a *assembler) jumpIf(name string) *assembler {
	return a.pushLabel(name).op(vm.JUMPI)
}

// label marks a jump destination.
func (a *assembler) label(name string) *assembler {
	a.labels[name] = len(a.code)
	return a.op(vm.JUMPDEST)
}

func (a *assembler) assemble() ([]byte, error) {
	code := append([]byte{}, a.code...)
	for pos, name := range a.refs {
		target, ok := a.labels[name]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", name)
		}
		if target > 0xffff {
			return nil, fmt.Errorf("label %q out of range", name)
		}
		binary.BigEndian.PutUint16(code[pos:], uint16(target))
	}
	return code, nil
}
