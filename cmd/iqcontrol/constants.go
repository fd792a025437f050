package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01

	KEY_MUTE       = 113
	KEY_VOLUMEDOWN = 114
	KEY_VOLUMEUP   = 115
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Pin defaults (BCM numbering, IQaudIO Pi-DAC / CosmicController wiring)
const (
	defaultEncoderPinA = "GPIO23"
	defaultEncoderPinB = "GPIO24"
	defaultButtonPin   = "GPIO27"
	defaultMutePin     = "GPIO22" // defined by the amp hardware
)

// Volume and timing defaults
const (
	defaultMixerControl   = "Digital" // IQaudIO master volume control name in amixer
	defaultMixerMapping   = "-M"      // alsamixer-like mapping; "-R" for raw percentage
	defaultAmixerPath     = "/usr/bin/amixer"
	defaultVolumeStepSize = 3.0 // percent of full span per detent
	defaultVolumeLoopHz   = 3   // volume changes at most this many times per second

	defaultHoldTimeMuteS   = 4.0  // amp mutes after switch held this long
	defaultHoldTimeOffS    = 6.0  // system powers off after this long (total)
	defaultSwitchDebounce  = 30   // ms, switch only (never the encoder)
	defaultButtonPollMS    = 20   // edge-mode release polling interval
	defaultCoarsePollMS    = 1000 // coarse-mode polling interval
	defaultRebootAfterS    = 1    // coarse mode: pressed seconds above this reboot
	defaultShutdownAfterS  = 5    // coarse mode: pressed seconds above this shut down
	defaultCoarseDebounce  = 200  // ms
	defaultReadTimeoutMS   = 500  // CamillaDSP websocket response timeout
	defaultCamillaDBStep   = 1.0  // dB per detent for the CamillaDSP mixer
	defaultCamillaMinDB    = -65.0
	defaultCamillaMaxDB    = 0.0
	defaultShutdownMessage = "System halted by volume control"

	maxVolumeLoopHz = 100
)

// Queue sizes
const (
	actionQueueSize  = 64
	commandQueueSize = 64
	edgeQueueSize    = 16
)

// irPollTimeout bounds each epoll wait so the IR reader notices cancellation.
const irPollTimeout = 250 * time.Millisecond
