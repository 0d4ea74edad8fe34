package analysis

import (
	"fmt"
	"strconv"
)

var commonPorts = map[uint16]string{
	20:   "FTP-DATA",
	21:   "FTP",
	22:   "SSH",
	23:   "Telnet",
	25:   "SMTP",
	53:   "DNS",
	67:   "DHCP",
	68:   "DHCP",
	80:   "HTTP",
	110:  "POP3",
	123:  "NTP",
	143:  "IMAP",
	443:  "HTTPS",
	853:  "DoT",
	3306: "MySQL",
	5353: "mDNS",
	5432: "PostgreSQL",
	6379: "Redis",
	8080: "HTTP-Alt",
}

// GetServiceName returns the common name for a port, or the port number as a string.
func GetServiceName(port uint16) string {
	if name, ok := commonPorts[port]; ok {
		return name
	}
	return strconv.Itoa(int(port))
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
