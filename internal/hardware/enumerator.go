package hardware

import (
	"sort"

	"go.bug.st/serial/enumerator"
)

// PortInfo 串口设备信息
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// portLister 便于测试替换
var portLister = enumerator.GetDetailedPortsList

// ListPorts 列出系统中的串口设备，按名称排序
func ListPorts() ([]PortInfo, error) {
	details, err := portLister()
	if err != nil {
		return nil, err
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}
