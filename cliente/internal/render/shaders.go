package render

// foliageInstancedVertexShader desenha instâncias com balanço de vento
// proporcional à altura local do vértice.
const foliageInstancedVertexShader = `
#version 330
in vec3 vertexPosition;
in vec2 vertexTexCoord;
in vec3 vertexNormal;
in vec4 vertexColor;
in mat4 instanceTransform;

uniform mat4 mvp;
uniform float time;
uniform float windStrength;

out vec2 fragTexCoord;
out vec4 fragColor;
out vec3 fragNormal;
out float fragHeight;
out vec3 fragWorldPos;

void main() {
    fragTexCoord = vertexTexCoord;
    fragColor = vertexColor;
    fragHeight = vertexPosition.y;

    vec4 world = instanceTransform * vec4(vertexPosition, 1.0);

    // Fase por instância a partir da translação, para não balançar em uníssono
    vec3 origin = instanceTransform[3].xyz;
    float phase = origin.x * 0.013 + origin.z * 0.017;
    float move = sin(time * 2.0 + phase) * windStrength * max(vertexPosition.y, 0.0);
    world.x += move;
    world.z += move * 0.3;

    fragNormal = normalize(mat3(instanceTransform) * vertexNormal);
    fragWorldPos = world.xyz;
    gl_Position = mvp * world;
}
`

const foliageFragmentShader = `
#version 330
in vec2 fragTexCoord;
in vec4 fragColor;
in vec3 fragNormal;
in float fragHeight;
in vec3 fragWorldPos;

uniform sampler2D texture0;
uniform vec4 colDiffuse; // Raylib passa o tint/color aqui
uniform vec3 camPos;

out vec4 finalColor;

void main() {
    vec4 texelColor = texture(texture0, fragTexCoord);
    if (texelColor.a < 0.2) discard;

    // Iluminação básica
    vec3 lightDir = normalize(vec3(0.5, 1.0, 0.3));
    float diff = max(dot(normalize(fragNormal), lightDir), 0.0);
    vec3 ambient = vec3(0.4, 0.4, 0.4);
    vec3 light = ambient + vec3(0.6) * diff;

    vec4 color = texelColor * fragColor * colDiffuse;
    color.rgb *= light;

    // Leve variação de cor baseada na altura
    color.rgb *= (0.8 + 0.2 * smoothstep(0.0, 1.0, fragHeight));

    // Fog
    float dist = length(camPos - fragWorldPos);
    float fogFactor = clamp(exp(-pow(dist * 0.00008, 2.0)), 0.0, 1.0);
    color.rgb = mix(vec3(0.55, 0.65, 0.75), color.rgb, fogFactor);

    finalColor = color;
}
`

const terrainVertexShader = `
#version 330
in vec3 vertexPosition;
in vec2 vertexTexCoord;
in vec3 vertexNormal;
in vec4 vertexColor;

uniform mat4 mvp;
uniform mat4 matModel;

out vec2 fragTexCoord;
out vec4 fragColor;
out vec3 fragWorldPos;

void main() {
    fragTexCoord = vertexTexCoord;
    fragColor = vertexColor;
    fragWorldPos = (matModel * vec4(vertexPosition, 1.0)).xyz;
    gl_Position = mvp * vec4(vertexPosition, 1.0);
}
`

const terrainFragmentShader = `
#version 330
in vec2 fragTexCoord;
in vec4 fragColor;
in vec3 fragWorldPos;

uniform vec4 colDiffuse;
uniform vec3 camPos;

out vec4 finalColor;

// Função de ruído simples para "Ground Splatting" visual
float hash(vec2 p) {
    return fract(sin(dot(p, vec2(127.1, 311.7))) * 43758.5453123);
}

void main() {
    vec2 cell = floor(fragWorldPos.xz / 100.0);
    float n = hash(cell);
    vec3 base = colDiffuse.rgb * (0.9 + 0.2 * n);

    // Grade de 1 metro
    vec2 g = abs(fract(fragWorldPos.xz / 100.0) - 0.5);
    float line = step(0.49, max(g.x, g.y));
    base = mix(base, base * 0.8, line);

    float dist = length(camPos - fragWorldPos);
    float fogFactor = clamp(exp(-pow(dist * 0.00008, 2.0)), 0.0, 1.0);
    finalColor = vec4(mix(vec3(0.55, 0.65, 0.75), base, fogFactor), 1.0);
}
`
