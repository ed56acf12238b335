package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
)

// Record sizes in bytes. Both records follow WGSL storage layout rules:
// every vec3<f32> is 16-byte aligned and the trailing scalar fills its pad.
const (
	RayRecordSize    = 48
	SphereRecordSize = 48
	UniformsSize     = 32
)

// Byte offsets inside a RayRecord
const (
	rayOriginOffset      = 0
	rayDirectionOffset   = 16
	rayColorOffset       = 32
	rayBouncesLeftOffset = 44
)

// Byte offsets inside a SphereRecord
const (
	sphereCenterOffset          = 0
	sphereRadiusOffset          = 12
	sphereAlbedoOffset          = 16
	sphereMaterialKindOffset    = 28
	sphereFuzzOffset            = 32
	sphereRefractionIndexOffset = 36
)

// RayRecord is one in-flight ray of the wavefront. Color is the throughput
// accumulated so far; once BouncesLeft reaches zero the ray is inert and
// Color holds its final radiance.
type RayRecord struct {
	Origin      [3]float32
	Direction   [3]float32
	Color       [3]float32
	BouncesLeft uint32
}

// SphereRecord is the device copy of a geometry.Sphere and its material
type SphereRecord struct {
	Center          [3]float32
	Radius          float32
	Albedo          [3]float32
	MaterialKind    uint32
	Fuzz            float32
	RefractionIndex float32
}

// Uniforms are the per-pass parameters of the trace kernel. RowStride is the
// number of invocations per dispatch row, used to linearize a 2D grid.
type Uniforms struct {
	PassIndex   uint32
	BounceIndex uint32
	SphereCount uint32
	RayCount    uint32
	Seed        uint32
	RowStride   uint32
}

// NewRayRecord converts a camera ray into a live record with unit
// throughput and maxDepth bounces left. With no bounces allowed the ray
// starts inert and black.
func NewRayRecord(ray core.Ray, maxDepth int) RayRecord {
	r := RayRecord{
		Origin:    toFloat32(ray.Origin),
		Direction: toFloat32(ray.Direction),
	}
	if maxDepth > 0 {
		r.Color = [3]float32{1, 1, 1}
		r.BouncesLeft = uint32(maxDepth)
	}
	return r
}

// NewSphereRecord converts a sphere into its device layout
func NewSphereRecord(s geometry.Sphere) SphereRecord {
	return SphereRecord{
		Center:          toFloat32(s.Center),
		Radius:          float32(s.Radius),
		Albedo:          toFloat32(s.Material.Albedo),
		MaterialKind:    uint32(s.Material.Kind),
		Fuzz:            float32(s.Material.Fuzz),
		RefractionIndex: float32(s.Material.RefractionIndex),
	}
}

// ColorVec returns the accumulated color as a core.Vec3
func (r RayRecord) ColorVec() core.Vec3 {
	return core.NewVec3(float64(r.Color[0]), float64(r.Color[1]), float64(r.Color[2]))
}

// PutRayRecord writes r at record index i of buf
func PutRayRecord(buf []byte, i int, r RayRecord) {
	b := buf[i*RayRecordSize : (i+1)*RayRecordSize]
	clear(b)
	putVec3(b[rayOriginOffset:], r.Origin)
	putVec3(b[rayDirectionOffset:], r.Direction)
	putVec3(b[rayColorOffset:], r.Color)
	binary.LittleEndian.PutUint32(b[rayBouncesLeftOffset:], r.BouncesLeft)
}

// GetRayRecord reads the record at index i of buf
func GetRayRecord(buf []byte, i int) RayRecord {
	b := buf[i*RayRecordSize : (i+1)*RayRecordSize]
	return RayRecord{
		Origin:      getVec3(b[rayOriginOffset:]),
		Direction:   getVec3(b[rayDirectionOffset:]),
		Color:       getVec3(b[rayColorOffset:]),
		BouncesLeft: binary.LittleEndian.Uint32(b[rayBouncesLeftOffset:]),
	}
}

// PutSphereRecord writes s at record index i of buf
func PutSphereRecord(buf []byte, i int, s SphereRecord) {
	b := buf[i*SphereRecordSize : (i+1)*SphereRecordSize]
	clear(b)
	putVec3(b[sphereCenterOffset:], s.Center)
	putFloat32(b[sphereRadiusOffset:], s.Radius)
	putVec3(b[sphereAlbedoOffset:], s.Albedo)
	binary.LittleEndian.PutUint32(b[sphereMaterialKindOffset:], s.MaterialKind)
	putFloat32(b[sphereFuzzOffset:], s.Fuzz)
	putFloat32(b[sphereRefractionIndexOffset:], s.RefractionIndex)
}

// GetSphereRecord reads the record at index i of buf
func GetSphereRecord(buf []byte, i int) SphereRecord {
	b := buf[i*SphereRecordSize : (i+1)*SphereRecordSize]
	return SphereRecord{
		Center:          getVec3(b[sphereCenterOffset:]),
		Radius:          getFloat32(b[sphereRadiusOffset:]),
		Albedo:          getVec3(b[sphereAlbedoOffset:]),
		MaterialKind:    binary.LittleEndian.Uint32(b[sphereMaterialKindOffset:]),
		Fuzz:            getFloat32(b[sphereFuzzOffset:]),
		RefractionIndex: getFloat32(b[sphereRefractionIndexOffset:]),
	}
}

// EncodeSpheres packs every sphere of world into a storage buffer image.
// An empty world still yields one zeroed record because zero-sized storage
// bindings are invalid; SphereCount in the uniforms stays 0.
func EncodeSpheres(world *geometry.World) []byte {
	spheres := world.Spheres()
	buf := make([]byte, max(1, len(spheres))*SphereRecordSize)
	for i, s := range spheres {
		PutSphereRecord(buf, i, NewSphereRecord(s))
	}
	return buf
}

// Bytes encodes the uniforms in their 32-byte device layout
func (u Uniforms) Bytes() []byte {
	b := make([]byte, UniformsSize)
	binary.LittleEndian.PutUint32(b[0:], u.PassIndex)
	binary.LittleEndian.PutUint32(b[4:], u.BounceIndex)
	binary.LittleEndian.PutUint32(b[8:], u.SphereCount)
	binary.LittleEndian.PutUint32(b[12:], u.RayCount)
	binary.LittleEndian.PutUint32(b[16:], u.Seed)
	binary.LittleEndian.PutUint32(b[20:], u.RowStride)
	return b
}

// DecodeUniforms is the inverse of Uniforms.Bytes
func DecodeUniforms(b []byte) (Uniforms, error) {
	if len(b) < UniformsSize {
		return Uniforms{}, fmt.Errorf("uniform buffer is %d bytes, want %d", len(b), UniformsSize)
	}
	return Uniforms{
		PassIndex:   binary.LittleEndian.Uint32(b[0:]),
		BounceIndex: binary.LittleEndian.Uint32(b[4:]),
		SphereCount: binary.LittleEndian.Uint32(b[8:]),
		RayCount:    binary.LittleEndian.Uint32(b[12:]),
		Seed:        binary.LittleEndian.Uint32(b[16:]),
		RowStride:   binary.LittleEndian.Uint32(b[20:]),
	}, nil
}

func toFloat32(v core.Vec3) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

func putFloat32(b []byte, f float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
}

func getFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func putVec3(b []byte, v [3]float32) {
	putFloat32(b[0:], v[0])
	putFloat32(b[4:], v[1])
	putFloat32(b[8:], v[2])
}

func getVec3(b []byte) [3]float32 {
	return [3]float32{getFloat32(b[0:]), getFloat32(b[4:]), getFloat32(b[8:])}
}
