//go:build tinygo

//go:generate tinygo flash -target=xiao

// Command bridge turns a microcontroller into the converter bridge of a Linux
// transmitter. It answers one line per command on the UART:
//
//	A<ch>  -> <count>   sample channel ch, scaled to 16 bits
//	E1/E0  -> OK        excitation pin on/off
package main

import (
	"machine"
	"strconv"
	"time"
)

const (
	UART_BAUD_RATE = 115200

	PIN_EXCITATION = machine.D2
)

var (
	uart     = machine.UART0
	channels = []machine.ADC{{Pin: machine.A0}, {Pin: machine.A1}}

	line     [8]byte
	linePos  int
	overlong bool
)

func reply(s string) {
	uart.Write([]byte(s + "\n"))
}

func handle(cmd string) {
	switch {
	case cmd == "E1":
		PIN_EXCITATION.High()
		reply("OK")
	case cmd == "E0":
		PIN_EXCITATION.Low()
		reply("OK")
	case len(cmd) > 1 && cmd[0] == 'A':
		ch, err := strconv.Atoi(cmd[1:])
		if err != nil || ch < 0 || ch >= len(channels) {
			reply("ERR unknown channel")
			return
		}
		reply(strconv.Itoa(int(channels[ch].Get())))
	default:
		reply("ERR unknown command")
	}
}

func main() {
	PIN_EXCITATION.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_EXCITATION.Low()

	machine.InitADC()
	for i := range channels {
		channels[i].Configure(machine.ADCConfig{})
	}
	uart.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	for {
		for uart.Buffered() > 0 {
			b, err := uart.ReadByte()
			if err != nil {
				break
			}
			switch {
			case b == '\n' || b == '\r':
				if overlong {
					reply("ERR line too long")
				} else if linePos > 0 {
					handle(string(line[:linePos]))
				}
				linePos, overlong = 0, false
			case linePos < len(line):
				line[linePos] = b
				linePos++
			default:
				overlong = true
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}
