// Package testprotos compiles the test fixture schemas once per process
// and exposes them as a serialized file descriptor set and a built pool.
// The fixture sources are embedded so tests need no protoc on the path.
package testprotos

import (
	"context"
	"fmt"
	"sync"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/protodyn/protodyn/desc"
)

var fixtureSources = map[string]string{
	"test/scalars.proto": `
syntax = "proto3";
package testdata;

enum Color {
  COLOR_UNSPECIFIED = 0;
  COLOR_RED = 1;
  COLOR_GREEN = 2;
  COLOR_BLUE = 3;
}

message Scalars {
  double f_double = 1;
  float f_float = 2;
  int32 f_int32 = 3;
  int64 f_int64 = 4;
  uint32 f_uint32 = 5;
  uint64 f_uint64 = 6;
  sint32 f_sint32 = 7;
  sint64 f_sint64 = 8;
  fixed32 f_fixed32 = 9;
  fixed64 f_fixed64 = 10;
  sfixed32 f_sfixed32 = 11;
  sfixed64 f_sfixed64 = 12;
  bool f_bool = 13;
  string f_string = 14;
  bytes f_bytes = 15;
  Color f_color = 16;
  optional string opt_string = 17;
  repeated int32 r_int32 = 18;
  repeated string r_string = 19;
  repeated int32 unpacked_int32 = 20 [packed = false];
  repeated Color r_color = 21;
}
`,
	"test/nesting.proto": `
syntax = "proto3";
package a.b;

message Outer {
  message Inner {
    string tag = 1;
  }
  Inner inner = 1;
  .a.b.Outer.Inner abs_inner = 2;
}
`,
	"test/complex.proto": `
syntax = "proto3";
package testdata;

import "test/scalars.proto";
import "google/protobuf/any.proto";
import "google/protobuf/duration.proto";
import "google/protobuf/empty.proto";
import "google/protobuf/field_mask.proto";
import "google/protobuf/struct.proto";
import "google/protobuf/timestamp.proto";
import "google/protobuf/wrappers.proto";

message Widget {
  message Part {
    string sku = 1;
    int64 qty = 2;
  }

  string name = 1;
  Scalars scalars = 2;
  oneof choice {
    string choice_name = 3;
    int64 choice_id = 5;
  }
  map<string, int32> counts = 6;
  map<int32, string> labels = 7;
  map<string, Part> parts = 8;
  repeated Part extras = 9;
  Color tint = 10;
}

message WellKnown {
  google.protobuf.Duration elapsed = 1;
  google.protobuf.Timestamp created = 2;
  google.protobuf.Struct attrs = 3;
  google.protobuf.Value extra = 4;
  google.protobuf.ListValue items = 5;
  google.protobuf.FieldMask mask = 6;
  google.protobuf.Empty nothing = 7;
  google.protobuf.Any payload = 8;
  google.protobuf.Int64Value count = 9;
  google.protobuf.StringValue label = 10;
  google.protobuf.BoolValue flag = 11;
  google.protobuf.DoubleValue ratio = 12;
  google.protobuf.BytesValue blob = 13;
}

service WidgetService {
  rpc GetWidget(Widget) returns (Widget);
  rpc WatchWidgets(Widget) returns (stream Widget);
}
`,
	"test/legacy.proto": `
syntax = "proto2";
package testdata2;

import "test/scalars.proto";

enum Mood {
  MOOD_SAD = 1;
  MOOD_HAPPY = 2;
}

message Legacy {
  required string id = 1;
  optional int32 num = 2 [default = 42];
  optional string label = 3 [default = "unnamed"];
  optional bytes blob = 4 [default = "\001\002\003"];
  optional Mood mood = 5 [default = MOOD_HAPPY];
  optional group Extras = 6 {
    optional string note = 1;
    repeated int32 tags = 2;
  }
  optional testdata.Scalars imported = 7;
  map<string, int32> attrs = 8;
  extensions 100 to 200;
}

extend Legacy {
  optional string ext_str = 100;
  repeated int32 ext_nums = 101;
}

message Holder {
  extend Legacy {
    optional int64 ext_id = 102;
  }
  optional string what = 1;
}
`,
}

var (
	compileOnce sync.Once
	fileSet     *descriptorpb.FileDescriptorSet
	setBytes    []byte
	pool        *desc.Pool
)

func compile() {
	comp := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(fixtureSources),
		}),
	}
	files, err := comp.Compile(context.Background(),
		"test/scalars.proto", "test/nesting.proto", "test/complex.proto", "test/legacy.proto")
	if err != nil {
		panic(fmt.Sprintf("testprotos: compiling fixtures: %v", err))
	}

	// flatten to a self-contained set, dependencies before dependents
	seen := map[string]bool{}
	fileSet = &descriptorpb.FileDescriptorSet{}
	var add func(fd protoreflect.FileDescriptor)
	add = func(fd protoreflect.FileDescriptor) {
		if seen[fd.Path()] {
			return
		}
		seen[fd.Path()] = true
		imports := fd.Imports()
		for i := 0; i < imports.Len(); i++ {
			add(imports.Get(i).FileDescriptor)
		}
		fileSet.File = append(fileSet.File, protodesc.ToFileDescriptorProto(fd))
	}
	for _, f := range files {
		add(f)
	}

	setBytes, err = proto.Marshal(fileSet)
	if err != nil {
		panic(fmt.Sprintf("testprotos: marshaling descriptor set: %v", err))
	}
	pool, err = desc.NewPool(setBytes)
	if err != nil {
		panic(fmt.Sprintf("testprotos: building pool: %v", err))
	}
}

// DescriptorSetBytes returns the fixtures as a serialized
// FileDescriptorSet, including every transitively imported file.
func DescriptorSetBytes() []byte {
	compileOnce.Do(compile)
	return setBytes
}

// FileSet returns the parsed form of DescriptorSetBytes.
func FileSet() *descriptorpb.FileDescriptorSet {
	compileOnce.Do(compile)
	return fileSet
}

// Pool returns a pool built from the fixtures, shared across tests.
func Pool() *desc.Pool {
	compileOnce.Do(compile)
	return pool
}

// Message returns a message descriptor from the shared fixture pool,
// panicking if the name is unknown.
func Message(fullName string) desc.MessageDescriptor {
	md, ok := Pool().FindMessageByName(fullName)
	if !ok {
		panic("testprotos: no message named " + fullName)
	}
	return md
}
