package cahute

import (
	"testing"

	"github.com/daedaluz/cahute/medium"
	"github.com/stretchr/testify/assert"
)

func TestDefaultSerialParams(t *testing.T) {
	cas40 := defaultSerialParams(ProtocolCAS40)
	assert.Equal(t, 4800, cas40.Speed)
	assert.Equal(t, medium.OneStopBit, cas40.StopBits)

	cas50 := defaultSerialParams(ProtocolCAS50)
	assert.Equal(t, 9600, cas50.Speed)
	assert.Equal(t, medium.OneStopBit, cas50.StopBits)

	cas100 := defaultSerialParams(ProtocolCAS100)
	assert.Equal(t, 38400, cas100.Speed)
	assert.Equal(t, medium.TwoStopBits, cas100.StopBits)

	seven := defaultSerialParams(ProtocolSeven)
	assert.Equal(t, 9600, seven.Speed)
	assert.Equal(t, medium.TwoStopBits, seven.StopBits)
}

func TestProtocolVariant(t *testing.T) {
	assert.Equal(t, 0, int(protocolVariant(ProtocolSeven))) // VariantAuto
	assert.NotEqual(t, protocolVariant(ProtocolCAS40), protocolVariant(ProtocolCAS50))
}

func TestRoleFromFlags(t *testing.T) {
	assert.Equal(t, medium.RoleSender, roleFromFlags(0))
	assert.Equal(t, medium.RoleReceiver, roleFromFlags(Receiver))
}
