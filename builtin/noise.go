package builtin

import "github.com/gogpu/fxc/fixed"

// Hash, value-noise and worley routines are pure integer constructions so
// identical inputs give identical outputs on every platform. The float
// kernels elsewhere in this package lean on math.*; these cannot, because
// lattice hashing must be bit-exact between the host transform, the
// emulator and real hardware builds of the runtime.

// avalanche is a 32-bit integer finalizer (lowbias32 constants).
func avalanche(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

// hashUnit maps a 32-bit hash to a Q16.16 value in [0, 1).
func hashUnit(h uint32) fixed.Q {
	return fixed.Q(h & 0xffff)
}

func hash1(a int32) uint32 {
	return avalanche(uint32(a))
}

func hash2(a, b int32) uint32 {
	return avalanche(uint32(a) ^ avalanche(uint32(b)))
}

func hash3(a, b, c int32) uint32 {
	return avalanche(uint32(a) ^ avalanche(uint32(b)^avalanche(uint32(c))))
}

func fxHash1(args []int32) (int32, error) {
	return int32(hashUnit(hash1(args[0]))), nil
}

func fxHash2(args []int32) (int32, error) {
	return int32(hashUnit(hash2(args[0], args[1]))), nil
}

func fxHash3(args []int32) (int32, error) {
	return int32(hashUnit(hash3(args[0], args[1], args[2]))), nil
}

// smooth applies the smoothstep fade 3t^2-2t^3 to t in [0,1).
func smooth(t fixed.Q) fixed.Q {
	three := fixed.FromInt(3)
	two := fixed.FromInt(2)
	return fixed.Mul(fixed.Mul(t, t), fixed.Sub(three, fixed.Mul(two, t)))
}

func lerp(a, b, t fixed.Q) fixed.Q {
	return fixed.Add(a, fixed.Mul(fixed.Sub(b, a), t))
}

// latticeCoord splits a Q16.16 coordinate into its integer lattice cell
// and the faded in-cell fraction.
func latticeCoord(x fixed.Q) (cell int32, t fixed.Q) {
	return int32(x >> fixed.Shift), smooth(fixed.Fract(x))
}

// fxNoise1 is 1-D value noise: hashed lattice values interpolated with a
// smoothstep fade. Output is in [0, 1).
func fxNoise1(args []int32) (int32, error) {
	c, t := latticeCoord(fixed.Q(args[0]))
	a := hashUnit(hash1(c))
	b := hashUnit(hash1(c + 1))
	return int32(lerp(a, b, t)), nil
}

// fxNoise2 is 2-D value noise over the four surrounding lattice corners.
func fxNoise2(args []int32) (int32, error) {
	cx, tx := latticeCoord(fixed.Q(args[0]))
	cy, ty := latticeCoord(fixed.Q(args[1]))

	v00 := hashUnit(hash2(cx, cy))
	v10 := hashUnit(hash2(cx+1, cy))
	v01 := hashUnit(hash2(cx, cy+1))
	v11 := hashUnit(hash2(cx+1, cy+1))

	return int32(lerp(lerp(v00, v10, tx), lerp(v01, v11, tx), ty)), nil
}

// fxNoise3 is 3-D value noise over the eight surrounding lattice corners.
func fxNoise3(args []int32) (int32, error) {
	cx, tx := latticeCoord(fixed.Q(args[0]))
	cy, ty := latticeCoord(fixed.Q(args[1]))
	cz, tz := latticeCoord(fixed.Q(args[2]))

	corner := func(dx, dy, dz int32) fixed.Q {
		return hashUnit(hash3(cx+dx, cy+dy, cz+dz))
	}

	bottom := lerp(
		lerp(corner(0, 0, 0), corner(1, 0, 0), tx),
		lerp(corner(0, 1, 0), corner(1, 1, 0), tx), ty)
	top := lerp(
		lerp(corner(0, 0, 1), corner(1, 0, 1), tx),
		lerp(corner(0, 1, 1), corner(1, 1, 1), tx), ty)

	return int32(lerp(bottom, top, tz)), nil
}

// fxWorley2 is 2-D cellular noise: squared distance to the nearest hashed
// feature point in the 3x3 cell neighborhood, clamped to [0, 1).
func fxWorley2(args []int32) (int32, error) {
	x, y := fixed.Q(args[0]), fixed.Q(args[1])
	cx := int32(x >> fixed.Shift)
	cy := int32(y >> fixed.Shift)

	best := fixed.Max
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			nx, ny := cx+dx, cy+dy
			h := hash2(nx, ny)
			// Feature point inside the neighbor cell.
			fx := fixed.Add(fixed.FromInt(nx), hashUnit(h))
			fy := fixed.Add(fixed.FromInt(ny), hashUnit(avalanche(h)))
			ddx := fixed.Sub(x, fx)
			ddy := fixed.Sub(y, fy)
			d := fixed.Add(fixed.Mul(ddx, ddx), fixed.Mul(ddy, ddy))
			if d < best {
				best = d
			}
		}
	}
	if best >= fixed.One {
		best = fixed.One - 1
	}
	return int32(best), nil
}

// fxWorley3 is 3-D cellular noise over the 3x3x3 neighborhood.
func fxWorley3(args []int32) (int32, error) {
	x, y, z := fixed.Q(args[0]), fixed.Q(args[1]), fixed.Q(args[2])
	cx := int32(x >> fixed.Shift)
	cy := int32(y >> fixed.Shift)
	cz := int32(z >> fixed.Shift)

	best := fixed.Max
	for dz := int32(-1); dz <= 1; dz++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dx := int32(-1); dx <= 1; dx++ {
				nx, ny, nz := cx+dx, cy+dy, cz+dz
				h := hash3(nx, ny, nz)
				fx := fixed.Add(fixed.FromInt(nx), hashUnit(h))
				fy := fixed.Add(fixed.FromInt(ny), hashUnit(avalanche(h)))
				fz := fixed.Add(fixed.FromInt(nz), hashUnit(avalanche(avalanche(h))))
				ddx := fixed.Sub(x, fx)
				ddy := fixed.Sub(y, fy)
				ddz := fixed.Sub(z, fz)
				d := fixed.Add(fixed.Add(fixed.Mul(ddx, ddx), fixed.Mul(ddy, ddy)), fixed.Mul(ddz, ddz))
				if d < best {
					best = d
				}
			}
		}
	}
	if best >= fixed.One {
		best = fixed.One - 1
	}
	return int32(best), nil
}
