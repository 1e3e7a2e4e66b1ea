package tycan

import (
	"fmt"
	"os/exec"
)

// ipLinkController brings CAN interfaces down/up and sets their bitrate via
// the `ip link` tool, the same external-command approach the example pack's
// canbus helper library uses for Linux SocketCAN interface configuration
// (exec.Command("ip", "link", "set", ...)) — the kernel exposes no syscall
// for CAN bitrate, only netlink/iproute2.
type ipLinkController struct {
	runner func(name string, args ...string) error
}

func newIPLinkController() *ipLinkController {
	return &ipLinkController{runner: runCommand}
}

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return nil
}

func (c *ipLinkController) Down(iface string) error {
	return c.runner("ip", "link", "set", iface, "down")
}

func (c *ipLinkController) Up(iface string) error {
	return c.runner("ip", "link", "set", iface, "up")
}

func (c *ipLinkController) SetBitrate(iface string, bitrate int) error {
	return c.runner("ip", "link", "set", iface, "type", "can", "bitrate", fmt.Sprintf("%d", bitrate))
}

var _ ifaceController = (*ipLinkController)(nil)
