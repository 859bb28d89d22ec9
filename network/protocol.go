package network

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	MsgTypeHeartbeat = 1

	// client → server
	MsgTypeJoinGame              = 101
	MsgTypeLeaveGame             = 102
	MsgTypeStartGame             = 103
	MsgTypeGameMove              = 104
	MsgTypeLeaderboardSettings   = 110
	MsgTypeLeaderboardVisibility = 111
	MsgTypeMemoryGameSettings    = 112

	// server → client
	MsgTypeCommandResponse   = 300
	MsgTypeAreaUpdate        = 301
	MsgTypeLeaderboardUpdate = 302
	MsgTypeSettingsResponse  = 303
	MsgTypeSettingsUpdate    = 304
)

const headerSize = 4

var ErrPacketTooLarge = errors.New("packet data exceeds 65535 bytes")

type Packet struct {
	MsgID  uint16
	Data   []byte
	Length uint16
}

// Encode 封包: 2字节消息ID + 2字节数据长度 + 数据
func Encode(msgID uint16, data []byte) ([]byte, error) {
	if len(data) > 0xFFFF {
		return nil, ErrPacketTooLarge
	}
	packet := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[headerSize:], data)
	return packet, nil
}

// Decode 解包
func Decode(data []byte) (*Packet, error) {
	if len(data) < headerSize {
		return nil, io.ErrShortBuffer
	}

	msgID := binary.BigEndian.Uint16(data[0:2])
	length := binary.BigEndian.Uint16(data[2:4])

	if len(data) < headerSize+int(length) {
		return nil, io.ErrShortBuffer
	}

	return &Packet{
		MsgID:  msgID,
		Length: length,
		Data:   data[headerSize : headerSize+int(length)],
	}, nil
}
