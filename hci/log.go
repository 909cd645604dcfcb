package hci

import "github.com/rigado/bthost"

var logger = bthost.GetLogger().ChildLogger(map[string]interface{}{"subsystem": "hci"})
