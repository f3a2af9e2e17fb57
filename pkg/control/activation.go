package control

import "github.com/hagbeck/containerterminal/pkg/brick"

// Activation records which sensor ports are activated, indexed by port number.
type Activation [3]bool

// toggleSensor flips the activation of a sensor port.
func (c *Controller) toggleSensor(name brick.SensorName) {
	i := name.Index()
	port := c.brick.Sensor(name)
	if c.active[i] {
		port.Passivate()
	} else {
		port.Activate()
	}
	c.active[i] = !c.active[i]
}
