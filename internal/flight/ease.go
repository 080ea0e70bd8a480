package flight

// EaseTicks is the length of the post-arrival ramp measured in ticks.
const EaseTicks = 300

// Ease ramps control authority linearly from 0 to 1 over EaseTicks ticks of
// duration dt. The window is rebuilt from dt on every call, so a variable tick
// rate keeps the ramp at roughly EaseTicks ticks.
func Ease(sinceArrival, dt float64) float64 {
	window := EaseTicks * dt
	if sinceArrival < window {
		return sinceArrival / window
	}
	return 1
}
